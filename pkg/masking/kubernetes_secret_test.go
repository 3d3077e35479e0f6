package masking

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const secretYAML = `apiVersion: v1
kind: Secret
metadata:
  name: db-credentials
  namespace: payments
type: Opaque
data:
  username: YWRtaW4=
  password: aHVudGVyMg==
`

const configMapYAML = `apiVersion: v1
kind: ConfigMap
metadata:
  name: app-settings
data:
  log_level: debug
  replicas: "3"
`

func decodeYAML(t *testing.T, text string) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(text), &doc))
	return doc
}

func TestKubernetesSecretMasker_MasksYAMLSecretData(t *testing.T) {
	m := &KubernetesSecretMasker{}
	require.True(t, m.AppliesTo(secretYAML))

	out := m.Mask(secretYAML)
	doc := decodeYAML(t, out)

	data := doc["data"].(map[string]any)
	assert.Equal(t, MaskedSecretValue, data["username"])
	assert.Equal(t, MaskedSecretValue, data["password"])

	metadata := doc["metadata"].(map[string]any)
	assert.Equal(t, "db-credentials", metadata["name"], "metadata stays readable")
	assert.True(t, strings.HasSuffix(out, "\n"), "trailing newline preserved")
}

func TestKubernetesSecretMasker_LeavesConfigMapsAlone(t *testing.T) {
	m := &KubernetesSecretMasker{}
	assert.False(t, m.AppliesTo(configMapYAML))
	assert.Equal(t, configMapYAML, m.Mask(configMapYAML))
}

func TestKubernetesSecretMasker_MultiDocumentYAML(t *testing.T) {
	input := secretYAML + "---\n" + configMapYAML
	m := &KubernetesSecretMasker{}
	require.True(t, m.AppliesTo(input))

	out := m.Mask(input)

	decoder := yaml.NewDecoder(strings.NewReader(out))
	var docs []map[string]any
	for {
		var doc map[string]any
		if err := decoder.Decode(&doc); err != nil {
			break
		}
		docs = append(docs, doc)
	}
	require.Len(t, docs, 2)

	for _, doc := range docs {
		switch doc["kind"] {
		case "Secret":
			data := doc["data"].(map[string]any)
			assert.Equal(t, MaskedSecretValue, data["password"])
		case "ConfigMap":
			data := doc["data"].(map[string]any)
			assert.Equal(t, "debug", data["log_level"], "config map survives untouched")
		default:
			t.Fatalf("unexpected kind %v", doc["kind"])
		}
	}
}

func TestKubernetesSecretMasker_MasksJSONSecret(t *testing.T) {
	input := `{
  "apiVersion": "v1",
  "kind": "Secret",
  "metadata": {"name": "api-token"},
  "data": {"token": "c2VjcmV0LXRva2Vu"},
  "stringData": {"endpoint_key": "plaintext-key"}
}`
	m := &KubernetesSecretMasker{}
	require.True(t, m.AppliesTo(input))

	out := m.Mask(input)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	assert.Equal(t, MaskedSecretValue, doc["data"].(map[string]any)["token"])
	assert.Equal(t, MaskedSecretValue, doc["stringData"].(map[string]any)["endpoint_key"])
	assert.Equal(t, "api-token", doc["metadata"].(map[string]any)["name"])
}

func TestKubernetesSecretMasker_MasksOnlySecretItemsInList(t *testing.T) {
	input := `apiVersion: v1
kind: List
items:
- apiVersion: v1
  kind: Secret
  metadata:
    name: s1
  data:
    key: dmFsdWU=
- apiVersion: v1
  kind: ConfigMap
  metadata:
    name: c1
  data:
    mode: fast
`
	m := &KubernetesSecretMasker{}
	out := m.Mask(input)
	doc := decodeYAML(t, out)

	items := doc["items"].([]any)
	require.Len(t, items, 2)

	secret := items[0].(map[string]any)
	assert.Equal(t, MaskedSecretValue, secret["data"].(map[string]any)["key"])

	configMap := items[1].(map[string]any)
	assert.Equal(t, "fast", configMap["data"].(map[string]any)["mode"])
}

func TestKubernetesSecretMasker_ScrubsLastAppliedAnnotation(t *testing.T) {
	embedded := `{"apiVersion":"v1","kind":"Secret","metadata":{"name":"db"},"data":{"password":"aHVudGVyMg=="}}`
	input := `apiVersion: v1
kind: Secret
metadata:
  name: db
  annotations:
    kubectl.kubernetes.io/last-applied-configuration: '` + embedded + `'
data:
  password: aHVudGVyMg==
`
	m := &KubernetesSecretMasker{}
	out := m.Mask(input)

	assert.NotContains(t, out, "aHVudGVyMg==")
	assert.Contains(t, out, MaskedSecretValue)
}

func TestKubernetesSecretMasker_UnparseableInputPassesThrough(t *testing.T) {
	input := "kind: Secret\n\t\tbroken: [unterminated"
	m := &KubernetesSecretMasker{}
	assert.Equal(t, input, m.Mask(input))
}
