// Package masking redacts credentials from tool output before it reaches
// the oracle or the event stream. Shell tools in an SRE loop routinely
// touch kubeconfigs, Secrets, and service logs; whatever they print is
// about to be serialized into a prompt and a pod log, so it gets
// scrubbed first.
package masking

// Masker is a structural masker: one that parses the data instead of
// pattern-matching it, so it can tell a Secret from a ConfigMap.
type Masker interface {
	// Name identifies the masker in logs.
	Name() string

	// AppliesTo is a cheap pre-check (string contains, not parsing).
	AppliesTo(data string) bool

	// Mask returns the redacted data. On parse errors it must return
	// the input unchanged; mangling output is worse than skipping it.
	Mask(data string) string
}
