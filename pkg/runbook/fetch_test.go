package runbook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_DownloadsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("# Latency Runbook\n\n1. Check the cache hit rate."))
	}))
	defer server.Close()

	content, err := NewFetcher("").Fetch(context.Background(), server.URL+"/latency.md")
	require.NoError(t, err)
	assert.Contains(t, content, "Check the cache hit rate")
}

func TestFetcher_SendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gh-test-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	_, err := NewFetcher("gh-test-token").Fetch(context.Background(), server.URL)
	require.NoError(t, err)
}

func TestFetcher_NonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewFetcher("").Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestFetcher_TruncatesOversizedRunbooks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", MaxRunbookBytes+4096)))
	}))
	defer server.Close()

	content, err := NewFetcher("").Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(content), MaxRunbookBytes+64)
	assert.True(t, strings.HasSuffix(content, "(runbook truncated)"))
}
