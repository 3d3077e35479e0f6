package masking

// Chain is the worker's output sanitizer. Structural maskers run first so
// the regex pass sees already-redacted secret payloads instead of raw
// base64 blobs it would have to guess at.
type Chain struct {
	maskers  []Masker
	patterns []*CompiledPattern
}

// NewChain builds the default chain: the Kubernetes Secret masker plus
// the builtin credential patterns.
func NewChain() *Chain {
	return &Chain{
		maskers:  []Masker{&KubernetesSecretMasker{}},
		patterns: builtinPatterns(),
	}
}

// Apply redacts data for inclusion in observations and events.
func (c *Chain) Apply(data string) string {
	if data == "" {
		return data
	}
	for _, m := range c.maskers {
		if m.AppliesTo(data) {
			data = m.Mask(data)
		}
	}
	for _, p := range c.patterns {
		data = p.Regex.ReplaceAllString(data, p.Replacement)
	}
	return data
}
