// Package tools provides the worker's tool registry: immutable descriptors
// with typed parameter schemas, explicit registration for built-in tools,
// and directory discovery for manifest-declared tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ToolHandler executes one tool invocation. The returned string is the
// tool's raw output; a non-nil error marks the invocation failed. Handlers
// must honor ctx cancellation.
type ToolHandler func(ctx context.Context, params map[string]any) (string, error)

// ToolDescriptor is the immutable record for one registered tool.
type ToolDescriptor struct {
	Name        string
	Version     string
	Description string
	InputSchema json.RawMessage
	Handler     ToolHandler

	// SearchTool marks tools whose output is grep-style match lines; the
	// Observation Funnel extracts match statistics for these.
	SearchTool bool

	schema *jsonschema.Schema
}

// compileSchema validates and compiles InputSchema. Called by the registry
// at registration time so every descriptor the engine sees carries a
// usable schema.
func (d *ToolDescriptor) compileSchema() error {
	if len(d.InputSchema) == 0 {
		return fmt.Errorf("tool %q: input schema is required", d.Name)
	}
	schema, err := jsonschema.CompileString(d.Name+".schema.json", string(d.InputSchema))
	if err != nil {
		return fmt.Errorf("tool %q: invalid input schema: %w", d.Name, err)
	}
	d.schema = schema
	return nil
}

// ValidateParams checks raw parameters against the compiled input schema.
// Parameters are round-tripped through JSON first so Go-native values
// (ints, nested maps) normalize to what the validator expects.
func (d *ToolDescriptor) ValidateParams(params map[string]any) error {
	if d.schema == nil {
		return fmt.Errorf("tool %q: schema not compiled", d.Name)
	}
	if params == nil {
		params = map[string]any{}
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	if err := d.schema.Validate(decoded); err != nil {
		return fmt.Errorf("invalid parameters for %s: %w", d.Name, err)
	}
	return nil
}

// RequiredParams returns the schema's required property names, used by the
// prompt builder to annotate the tool catalog.
func (d *ToolDescriptor) RequiredParams() []string {
	var spec struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(d.InputSchema, &spec); err != nil {
		return nil
	}
	return spec.Required
}

// ParamNames returns all declared property names. Ordering is not
// guaranteed; callers sort when they need determinism.
func (d *ToolDescriptor) ParamNames() []string {
	var spec struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(d.InputSchema, &spec); err != nil {
		return nil
	}
	names := make([]string, 0, len(spec.Properties))
	for name := range spec.Properties {
		names = append(names, name)
	}
	return names
}

// ParamSpec describes one schema property for catalog rendering.
type ParamSpec struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// ParamSpecs returns the declared properties sorted by name, required
// entries first.
func (d *ToolDescriptor) ParamSpecs() []ParamSpec {
	var spec struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(d.InputSchema, &spec); err != nil {
		return nil
	}
	required := make(map[string]bool, len(spec.Required))
	for _, name := range spec.Required {
		required[name] = true
	}
	out := make([]ParamSpec, 0, len(spec.Properties))
	for name, prop := range spec.Properties {
		typ := prop.Type
		if typ == "" {
			typ = "string"
		}
		out = append(out, ParamSpec{
			Name:        name,
			Type:        typ,
			Description: prop.Description,
			Required:    required[name],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Required != out[j].Required {
			return out[i].Required
		}
		return out[i].Name < out[j].Name
	})
	return out
}
