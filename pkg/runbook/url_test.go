package runbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateURL(t *testing.T) {
	allowed := []string{"github.com", "raw.githubusercontent.com"}

	cases := map[string]struct {
		url     string
		domains []string
		wantErr bool
	}{
		"empty url is fine":        {"", allowed, false},
		"github blob url":          {"https://github.com/ufflow/runbooks/blob/main/latency.md", allowed, false},
		"www prefix accepted":      {"https://www.github.com/ufflow/runbooks/blob/main/latency.md", allowed, false},
		"raw url":                  {"https://raw.githubusercontent.com/ufflow/runbooks/main/latency.md", allowed, false},
		"disallowed domain":        {"https://pastebin.com/raw/abc123", allowed, true},
		"file scheme rejected":     {"file:///etc/passwd", allowed, true},
		"ftp scheme rejected":      {"ftp://github.com/x", allowed, true},
		"no allowlist accepts any": {"https://wiki.internal/runbooks/db.md", nil, false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidateURL(tc.url, tc.domains)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRawContentURL(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
	}{
		"blob url converts": {
			"https://github.com/ufflow/runbooks/blob/main/db/latency.md",
			"https://raw.githubusercontent.com/ufflow/runbooks/refs/heads/main/db/latency.md",
		},
		"tree url converts": {
			"https://github.com/ufflow/runbooks/tree/main/db/latency.md",
			"https://raw.githubusercontent.com/ufflow/runbooks/refs/heads/main/db/latency.md",
		},
		"raw url passes through": {
			"https://raw.githubusercontent.com/ufflow/runbooks/main/latency.md",
			"https://raw.githubusercontent.com/ufflow/runbooks/main/latency.md",
		},
		"non-github passes through": {
			"https://wiki.internal/runbooks/db.md",
			"https://wiki.internal/runbooks/db.md",
		},
		"repo root without blob passes through": {
			"https://github.com/ufflow/runbooks",
			"https://github.com/ufflow/runbooks",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, RawContentURL(tc.in))
		})
	}
}
