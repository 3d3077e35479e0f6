package config

import (
	"bytes"
	"os"
	"text/template"
)

// ExpandEnv expands environment variables in YAML content using Go
// templates. Uses {{.VAR_NAME}} syntax to avoid collision with $ in shell
// command templates and regex patterns, both of which appear in tool
// manifests and configuration.
//
// Examples:
//   - {{.ORACLE_SECRET_NAME}} → value of ORACLE_SECRET_NAME
//   - {{.REGISTRY}}/oats-worker:{{.TAG}} → both variables expanded
//   - command: "grep -c '^error$' {{.path}}" → $ preserved literally
//
// Missing variables expand to empty string; validation catches required
// fields that end up empty. Malformed template syntax passes the original
// data through so the YAML parser can produce a clearer error.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	envMap := make(map[string]string)
	for _, env := range os.Environ() {
		// Split only on the first = to handle values containing =.
		if idx := bytes.IndexByte([]byte(env), '='); idx > 0 {
			envMap[env[:idx]] = env[idx+1:]
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, envMap); err != nil {
		return data
	}

	return buf.Bytes()
}
