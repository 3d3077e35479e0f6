package masking

import "regexp"

// CompiledPattern pairs a compiled regex with its replacement text.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// builtinPatterns compiles the always-on redaction set. These run over
// every observation, so they stick to credential shapes that rarely
// appear in innocent log output; generic base64 matching is deliberately
// absent because it also matches image digests and request ids.
func builtinPatterns() []*CompiledPattern {
	defs := []struct {
		name        string
		pattern     string
		replacement string
	}{
		{
			"api_key",
			`(?i)(?:api[_-]?key|apikey)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-]{20,})["']?`,
			`"api_key": "__MASKED_API_KEY__"`,
		},
		{
			"password",
			`(?i)(?:password|pwd|passwd)["']?\s*[:=]\s*["']?([^"'\s\n]{6,})["']?`,
			`"password": "__MASKED_PASSWORD__"`,
		},
		{
			"token",
			`(?i)(?:token|bearer|jwt)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-\.]{20,})["']?`,
			`"token": "__MASKED_TOKEN__"`,
		},
		{
			"private_key",
			`(?i)(?:private[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-\.]{20,})["']?`,
			`"private_key": "__MASKED_PRIVATE_KEY__"`,
		},
		{
			"secret_key",
			`(?i)(?:secret[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-\.]{20,})["']?`,
			`"secret_key": "__MASKED_SECRET_KEY__"`,
		},
		{
			"certificate",
			`(?s)-----BEGIN [A-Z ]+-----.*?-----END [A-Z ]+-----`,
			`__MASKED_CERTIFICATE__`,
		},
		{
			"certificate_authority_data",
			`(?i)certificate-authority-data:\s*([A-Za-z0-9+/]{20,}={0,2})`,
			`certificate-authority-data: __MASKED_CA_CERTIFICATE__`,
		},
		{
			"ssh_key",
			`ssh-(?:rsa|dss|ed25519|ecdsa)\s+[A-Za-z0-9+/=]+`,
			`__MASKED_SSH_KEY__`,
		},
		{
			"aws_access_key",
			`(?i)(?:aws[_-]?access[_-]?key[_-]?id)["']?\s*[:=]\s*["']?(AKIA[A-Z0-9]{16})["']?`,
			`"aws_access_key_id": "__MASKED_AWS_KEY__"`,
		},
		{
			"aws_secret_key",
			`(?i)(?:aws[_-]?secret[_-]?access[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`,
			`"aws_secret_access_key": "__MASKED_AWS_SECRET__"`,
		},
		{
			"github_token",
			`gh[ps]_[A-Za-z0-9_]{36,255}`,
			`__MASKED_GITHUB_TOKEN__`,
		},
		{
			"slack_token",
			`(?i)xox[baprs]-[A-Za-z0-9-]{10,72}`,
			`__MASKED_SLACK_TOKEN__`,
		},
	}

	patterns := make([]*CompiledPattern, 0, len(defs))
	for _, d := range defs {
		patterns = append(patterns, &CompiledPattern{
			Name:        d.name,
			Regex:       regexp.MustCompile(d.pattern),
			Replacement: d.replacement,
		})
	}
	return patterns
}
