// Package runbook validates and fetches operator runbooks. The control
// plane validates the URL when an investigation is submitted; the worker
// downloads the content and folds it into its prompt as reference
// material.
package runbook

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// githubBlobPattern matches /{owner}/{repo}/{blob|tree}/{ref}/{path}.
var githubBlobPattern = regexp.MustCompile(`^/([^/]+)/([^/]+)/(?:blob|tree)/([^/]+)(?:/(.*))?$`)

// ValidateURL checks the scheme and, when a domain allowlist is
// configured, the host. An empty URL is valid: runbooks are optional.
func ValidateURL(rawURL string, allowedDomains []string) error {
	if rawURL == "" {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed runbook url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("runbook url scheme %q not allowed, use http or https", parsed.Scheme)
	}
	if len(allowedDomains) == 0 {
		return nil
	}

	host := strings.ToLower(parsed.Hostname())
	for _, domain := range allowedDomains {
		if host == domain || host == "www."+domain {
			return nil
		}
	}
	return fmt.Errorf("runbook domain %q not in allowed list", host)
}

// RawContentURL rewrites a GitHub blob or tree URL to the raw content
// host. Anything else, raw URLs included, passes through unchanged.
func RawContentURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if parsed.Host != "github.com" && parsed.Host != "www.github.com" {
		return rawURL
	}

	m := githubBlobPattern.FindStringSubmatch(parsed.Path)
	if m == nil {
		return rawURL
	}
	owner, repo, ref, path := m[1], m[2], m[3], m[4]
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/refs/heads/%s/%s",
		owner, repo, ref, path)
}
