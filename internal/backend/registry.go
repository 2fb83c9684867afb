package backend

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotConfigured is returned when no adapter was registered under a name,
// meaning no API key or configuration was supplied. It is distinct from
// "configured but currently failing", which surfaces as attempt errors.
var ErrNotConfigured = errors.New("backend not configured")

// Registry holds the configured backend adapters keyed by name. Iteration
// order is insertion order, so candidate walks are deterministic.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	adapters map[string]Adapter
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds a backend adapter. Re-registering the same name replaces the
// adapter while keeping its original position in the iteration order.
func (r *Registry) Register(name string, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[name]; !exists {
		r.order = append(r.order, name)
	}
	r.adapters[name] = adapter
}

// Get returns the adapter registered under name, or a wrapped
// ErrNotConfigured when none exists.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, name)
	}
	return adapter, nil
}

// Has reports whether a backend is configured.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[name]
	return ok
}

// Available returns the configured backend names in registration order.
// Configured means credentials were supplied, not that the backend is
// currently healthy.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// ModelsFor returns the static model listing for a backend.
func (r *Registry) ModelsFor(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[name]
	if !ok {
		return nil
	}
	return []string{adapter.Info().Model}
}

// Describe returns the descriptors of all configured backends in
// registration order.
func (r *Registry) Describe() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]Backend, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.adapters[name].Info())
	}
	return infos
}
