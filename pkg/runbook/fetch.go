package runbook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxRunbookBytes caps how much runbook text the worker will accept.
// Anything larger would crowd the goal and state out of the prompt.
const MaxRunbookBytes = 64 * 1024

// Fetcher downloads runbook content over HTTP.
type Fetcher struct {
	httpClient *http.Client
	token      string
}

// NewFetcher builds a fetcher. token may be empty; it only matters for
// private GitHub repositories.
func NewFetcher(token string) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      token,
	}
}

// Fetch downloads the runbook body, converting GitHub blob URLs to raw
// content URLs first. Oversized bodies are truncated, not rejected.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	downloadURL := RawContentURL(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("build runbook request: %w", err)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch runbook from %s: %w", downloadURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("runbook fetch returned HTTP %d for %s", resp.StatusCode, downloadURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxRunbookBytes+1))
	if err != nil {
		return "", fmt.Errorf("read runbook body: %w", err)
	}
	if len(body) > MaxRunbookBytes {
		body = body[:MaxRunbookBytes]
		body = append(body, []byte("\n... (runbook truncated)")...)
	}
	return string(body), nil
}
