package tools

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry errors. Compared with errors.Is.
var (
	ErrDuplicateTool = errors.New("duplicate tool")
	ErrToolNotFound  = errors.New("tool not found")
)

// Registry maps tool names to descriptors. It is populated once during
// worker startup (built-ins plus discovery) and treated as read-only
// afterwards; the lock exists only to keep that population phase safe.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*ToolDescriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*ToolDescriptor)}
}

// Register adds a descriptor. The descriptor's input schema is compiled
// here; a descriptor with a missing or uncompilable schema is rejected so
// the engine only ever sees validated schemas. Registering a name that is
// already taken fails with ErrDuplicateTool.
func (r *Registry) Register(desc *ToolDescriptor) error {
	if desc == nil || desc.Name == "" {
		return errors.New("tool descriptor requires a name")
	}
	if desc.Handler == nil {
		return fmt.Errorf("tool %q: handler is required", desc.Name)
	}
	if err := desc.compileSchema(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[desc.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, desc.Name)
	}
	r.byName[desc.Name] = desc
	return nil
}

// Lookup returns the descriptor for name, or ErrToolNotFound.
func (r *Registry) Lookup(name string) (*ToolDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return desc, nil
}

// List returns all descriptors sorted by name so the prompt catalog is
// stable across turns.
func (r *Registry) List() []*ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ToolDescriptor, 0, len(r.byName))
	for _, desc := range r.byName {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
