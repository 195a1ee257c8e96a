package service

import (
	"fmt"
	"time"

	"github.com/Strob0t/moecore/internal/config"
	"github.com/Strob0t/moecore/internal/domain"
	"github.com/Strob0t/moecore/internal/domain/expert"
	"github.com/Strob0t/moecore/internal/port/cache"
	"github.com/Strob0t/moecore/internal/port/expertbackend"
	"github.com/Strob0t/moecore/internal/resilience"
)

// SlotOptions are the shared decorator settings for configured slots.
type SlotOptions struct {
	Cache    cache.Cache
	CacheTTL time.Duration
	Breaker  config.Breaker
}

// BuildSlots turns configured expert entries into pool slots indexed by
// position. Positions without an entry are left empty for the no-op expert.
// Per entry the callable is bounded by its timeout, then guarded by a
// breaker, then cached, each only when enabled.
func BuildSlots(entries []config.ExpertSlot, backends *expertbackend.Registry, opts SlotOptions) ([]expert.Slot, error) {
	slots := make([]expert.Slot, expert.PoolSize)
	seen := make(map[int]bool, len(entries))

	for _, e := range entries {
		if e.Index < 0 || e.Index >= expert.PoolSize {
			return nil, fmt.Errorf("%w: expert index must be in 0..%d, got %d", domain.ErrValidation, expert.PoolSize-1, e.Index)
		}
		if seen[e.Index] {
			return nil, fmt.Errorf("%w: expert index %d configured twice", domain.ErrValidation, e.Index)
		}
		seen[e.Index] = true

		name := e.Name
		if name == "" {
			name = fmt.Sprintf("expert_%d", e.Index)
		}
		fn, err := backends.New(e.Backend, e.Config)
		if err != nil {
			return nil, fmt.Errorf("slot %d (%s): %w", e.Index, name, err)
		}

		fn = expertbackend.WithTimeout(fn, e.Timeout)
		if e.Breaker {
			fn = expertbackend.WithBreaker(fn, resilience.NewBreaker(name, opts.Breaker.MaxFailures, opts.Breaker.Timeout))
		}
		if e.Cache {
			fn = expertbackend.WithCache(fn, opts.Cache, e.Backend, name, opts.CacheTTL)
		}

		slots[e.Index] = expert.Slot{
			Name:     name,
			Fn:       fn,
			Metadata: map[string]any{"backend": e.Backend},
		}
	}
	return slots, nil
}

// SummarizeWith adapts a callable into a Summarizer. The callable receives
// the combined expert text, with the scrubbed prompt under the "prompt"
// context key. The raw prompt never reaches the callable.
func SummarizeWith(fn expert.Callable) Summarizer {
	return func(combined string, p SummaryPayload) (string, error) {
		return fn(combined, map[string]any{
			"prompt":     p.Scrubbed,
			"per_expert": p.PerExpert,
		})
	}
}
