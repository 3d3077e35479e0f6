package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// manifest is the on-disk declaration of a shell-template tool.
type manifest struct {
	Name        string         `yaml:"name"`
	Version     string         `yaml:"version"`
	Description string         `yaml:"description"`
	Command     string         `yaml:"command"`
	InputSchema map[string]any `yaml:"input_schema"`
}

// Discover walks root for *.yaml/*.yml tool manifests and registers each
// as a shell-template tool. Malformed manifests and duplicate names are
// logged and skipped; discovery only fails when the root itself cannot be
// read. Returns the number of tools registered.
func (r *Registry) Discover(root string) (int, error) {
	info, err := os.Stat(root)
	if err != nil {
		return 0, fmt.Errorf("tool directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("tool directory %s: not a directory", root)
	}

	registered := 0
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		desc, err := loadManifest(path)
		if err != nil {
			slog.Warn("Skipping malformed tool manifest", "path", path, "error", err)
			return nil
		}
		if err := r.Register(desc); err != nil {
			if errors.Is(err, ErrDuplicateTool) {
				slog.Warn("Skipping duplicate tool from manifest", "path", path, "tool", desc.Name)
				return nil
			}
			slog.Warn("Skipping unregistrable tool manifest", "path", path, "tool", desc.Name, "error", err)
			return nil
		}
		slog.Debug("Registered manifest tool", "tool", desc.Name, "version", desc.Version, "path", path)
		registered++
		return nil
	})
	if walkErr != nil {
		return registered, fmt.Errorf("walking tool directory %s: %w", root, walkErr)
	}
	return registered, nil
}

// loadManifest parses one manifest file into a registrable descriptor.
func loadManifest(path string) (*ToolDescriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if m.Name == "" {
		return nil, errors.New("manifest missing name")
	}
	if m.Command == "" {
		return nil, fmt.Errorf("manifest %q missing command", m.Name)
	}
	if len(m.InputSchema) == 0 {
		return nil, fmt.Errorf("manifest %q missing input_schema", m.Name)
	}
	if m.Version == "" {
		m.Version = "1.0.0"
	}

	schemaJSON, err := json.Marshal(m.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("manifest %q: encode input_schema: %w", m.Name, err)
	}

	// The command template is rendered against validated params at call
	// time. missingkey=error: a reference to an absent optional param is a
	// recoverable tool failure, not a silently empty substitution.
	tmpl, err := template.New(m.Name).Option("missingkey=error").Parse(m.Command)
	if err != nil {
		return nil, fmt.Errorf("manifest %q: parse command template: %w", m.Name, err)
	}

	return &ToolDescriptor{
		Name:        m.Name,
		Version:     m.Version,
		Description: m.Description,
		InputSchema: schemaJSON,
		Handler: func(ctx context.Context, params map[string]any) (string, error) {
			var cmd bytes.Buffer
			if err := tmpl.Execute(&cmd, params); err != nil {
				return "", fmt.Errorf("render command: %w", err)
			}
			return runShell(ctx, cmd.String(), "")
		},
	}, nil
}
