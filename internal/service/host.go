package service

import (
	"context"
	"sync"

	"github.com/Strob0t/moecore/internal/domain/expert"
	"github.com/Strob0t/moecore/internal/domain/scrub"
)

// BackendHost resolves registered experts to live objects for the facade.
// An expert bound to a backend callable analyzes through it; every other
// registered expert resolves to its descriptor, which yields a placeholder
// analysis. Unregistered ids are not found.
type BackendHost struct {
	registry *ExpertRegistry

	mu    sync.RWMutex
	bound map[string]boundAnalyzer
}

type boundAnalyzer struct {
	backend string
	fn      expert.Callable
}

var _ expert.Host = (*BackendHost)(nil)

// NewBackendHost creates a host over reg.
func NewBackendHost(reg *ExpertRegistry) *BackendHost {
	return &BackendHost{registry: reg, bound: make(map[string]boundAnalyzer)}
}

// Bind makes expert id analyze with fn. The binding survives registry
// reloads; it only takes effect while id is registered.
func (h *BackendHost) Bind(id, backend string, fn expert.Callable) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bound[id] = boundAnalyzer{backend: backend, fn: fn}
}

// LookupExpert implements expert.Host.
func (h *BackendHost) LookupExpert(id string) (any, bool) {
	d := h.registry.Get(id)
	if d == nil {
		return nil, false
	}
	h.mu.RLock()
	b, ok := h.bound[id]
	h.mu.RUnlock()
	if !ok {
		return d, true
	}
	return expert.AnalyzerFunc(func(_ context.Context, task string, runCtx map[string]any) (map[string]any, error) {
		out, err := b.fn(scrub.Text(task), runCtx)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"answer":         out,
			"backend":        b.backend,
			"specialization": d.Specialization,
		}, nil
	}), true
}
