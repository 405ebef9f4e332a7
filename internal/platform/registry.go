package platform

import (
	"fmt"
	"sort"
	"sync"
)

// Builder constructs an adapter from a user's credentials.
type Builder func(creds Credentials) (Adapter, error)

// Registry maps platform ids to adapter builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds or replaces the builder for a platform id.
func (r *Registry) Register(id string, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[id] = builder
}

// Build creates an adapter for id. Catalog platforms without a builder fail
// with "<Name> adapter coming soon"; anything else is an unknown platform.
// In both cases no adapter is constructed.
func (r *Registry) Build(id string, creds Credentials) (Adapter, error) {
	r.mu.RLock()
	builder, found := r.builders[id]
	r.mu.RUnlock()

	if found {
		return builder(creds)
	}
	if info, ok := Lookup(id); ok {
		return nil, fmt.Errorf("%w: %s adapter coming soon", ErrUnsupportedPlatform, info.Name)
	}
	return nil, fmt.Errorf("%w: unknown platform: %s", ErrUnsupportedPlatform, id)
}

// Available returns the registered platform ids, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.builders))
	for id := range r.builders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Has reports whether a builder is registered for id.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, found := r.builders[id]
	return found
}
