// Package expertbackend turns configured expert definitions into dispatchable
// callables. Adapters register a Factory under a backend name; the engine builds
// token-dispatch slots from configuration through a Registry instance.
package expertbackend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Strob0t/moecore/internal/domain"
	"github.com/Strob0t/moecore/internal/domain/expert"
)

// Factory creates a callable from backend-specific settings.
type Factory func(config map[string]string) (expert.Callable, error)

// Registry maps backend names to factories. The zero value is not usable; call NewRegistry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register makes a backend factory available by name.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("expertbackend %q: %w", name, domain.ErrConflict)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister is Register that panics on duplicates, for wiring at startup.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// New builds a callable with the named factory.
func (r *Registry) New(name string, config map[string]string) (expert.Callable, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("expertbackend %q: %w", name, domain.ErrNotFound)
	}
	fn, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("expertbackend %q: %w", name, err)
	}
	return fn, nil
}

// Available returns the registered backend names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
