package masking

import (
	"bytes"
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaskedSecretValue replaces every data value of a Kubernetes Secret.
const MaskedSecretValue = "[MASKED_SECRET_DATA]"

var (
	yamlSecretKind = regexp.MustCompile(`(?m)^kind:\s*Secret`)
	jsonSecretKind = regexp.MustCompile(`"kind"\s*:\s*"Secret`)
)

// KubernetesSecretMasker blanks data and stringData in Secret resources
// while leaving ConfigMaps and every other kind untouched. It handles
// single documents, multi-document YAML, and List/SecretList envelopes,
// in both the YAML and JSON shapes kubectl produces.
type KubernetesSecretMasker struct{}

func (m *KubernetesSecretMasker) Name() string { return "kubernetes_secret" }

func (m *KubernetesSecretMasker) AppliesTo(data string) bool {
	if !strings.Contains(data, "Secret") {
		return false
	}
	return yamlSecretKind.MatchString(data) || jsonSecretKind.MatchString(data)
}

func (m *KubernetesSecretMasker) Mask(data string) string {
	trimmed := strings.TrimSpace(data)

	// JSON first when it looks like JSON, otherwise the YAML decoder
	// would happily consume it and re-emit it as YAML.
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		if masked := m.maskJSON(data); masked != data {
			return masked
		}
	}
	if masked := m.maskYAML(data); masked != data {
		return masked
	}
	return data
}

func (m *KubernetesSecretMasker) maskYAML(data string) string {
	decoder := yaml.NewDecoder(strings.NewReader(data))
	var docs []map[string]any
	touched := false

	for {
		var doc map[string]any
		err := decoder.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return data
		}
		if doc == nil {
			continue
		}
		if redactDocument(doc) {
			touched = true
		}
		docs = append(docs, doc)
	}

	if !touched || len(docs) == 0 {
		return data
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	for _, doc := range docs {
		if err := encoder.Encode(doc); err != nil {
			return data
		}
	}
	if err := encoder.Close(); err != nil {
		return data
	}

	out := strings.TrimRight(buf.String(), "\n")
	if strings.HasSuffix(data, "\n") {
		out += "\n"
	}
	return out
}

func (m *KubernetesSecretMasker) maskJSON(data string) string {
	var doc map[string]any
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return data
	}
	if !redactDocument(doc) {
		return data
	}

	// Two-space indent matches kubectl -o json output.
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return data
	}
	masked := string(out)
	if strings.HasSuffix(data, "\n") {
		masked += "\n"
	}
	return masked
}

// redactDocument blanks secret payloads in one resource document,
// recursing into List/SecretList items. Reports whether anything changed.
func redactDocument(doc map[string]any) bool {
	kind, _ := doc["kind"].(string)
	switch {
	case kind == "Secret":
		redactSecretData(doc)
		redactEmbeddedSecrets(doc)
		return true
	case kind == "SecretList" || strings.HasSuffix(kind, "List"):
		items, _ := doc["items"].([]any)
		touched := false
		for _, item := range items {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			// A SecretList's items carry no kind of their own.
			if entryKind, _ := entry["kind"].(string); entryKind == "Secret" || kind == "SecretList" {
				redactSecretData(entry)
				redactEmbeddedSecrets(entry)
				touched = true
			}
		}
		return touched
	default:
		return false
	}
}

// redactSecretData replaces the values under data and stringData.
func redactSecretData(resource map[string]any) {
	for _, field := range []string{"data", "stringData"} {
		values, ok := resource[field].(map[string]any)
		if !ok {
			continue
		}
		for key := range values {
			values[key] = MaskedSecretValue
		}
	}
}

// redactEmbeddedSecrets scrubs annotations that embed a JSON copy of the
// Secret, most notably kubectl.kubernetes.io/last-applied-configuration.
func redactEmbeddedSecrets(resource map[string]any) {
	metadata, ok := resource["metadata"].(map[string]any)
	if !ok {
		return
	}
	annotations, ok := metadata["annotations"].(map[string]any)
	if !ok {
		return
	}

	for key, val := range annotations {
		text, ok := val.(string)
		if !ok || !strings.Contains(text, "Secret") {
			continue
		}
		var embedded map[string]any
		if err := json.Unmarshal([]byte(text), &embedded); err != nil {
			continue
		}
		if embeddedKind, _ := embedded["kind"].(string); embeddedKind != "Secret" {
			continue
		}
		redactSecretData(embedded)
		masked, err := json.Marshal(embedded)
		if err != nil {
			continue
		}
		annotations[key] = string(masked)
	}
}
