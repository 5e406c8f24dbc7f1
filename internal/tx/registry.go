package tx

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Config gives read access to named configuration sections.
type Config interface {
	// Value returns the value of key in section and whether it is set.
	Value(section, key string) (string, bool)
}

// Constructor builds an uninitialized transmitter for section name.
type Constructor func(cfg Config, name string) (Transmitter, error)

// Factory resolves a configuration section name to a new transmitter.
type Factory interface {
	Create(name string) (Transmitter, error)
}

// Registry is a Factory that dispatches on the TYPE key of a section.
type Registry struct {
	mu    sync.RWMutex
	cfg   Config
	ctors map[string]Constructor
}

// Compile-time assertion that Registry implements Factory
var _ Factory = (*Registry)(nil)

// NewRegistry creates a registry reading sections from cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:   cfg,
		ctors: make(map[string]Constructor),
	}
}

// Register binds a transmitter type name to its constructor. Type names are
// case-insensitive.
func (r *Registry) Register(typeName string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[strings.ToLower(typeName)] = ctor
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// Create constructs the transmitter configured in section name.
func (r *Registry) Create(name string) (Transmitter, error) {
	typeName, ok := r.cfg.Value(name, "TYPE")
	if !ok {
		return nil, fmt.Errorf("%w: section %s has no TYPE", ErrUnknownTransmitter, name)
	}

	r.mu.RLock()
	ctor, exists := r.ctors[strings.ToLower(typeName)]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s (transmitter %s)", ErrUnknownType, typeName, name)
	}

	t, err := ctor(r.cfg, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create transmitter %s: %w", name, err)
	}
	return t, nil
}
