package expert

import "fmt"

// PoolSize is the fixed number of slots in the token dispatch pool.
const PoolSize = 8

// noopPreview is the number of runes echoed back by a no-op slot.
const noopPreview = 120

// Callable is the contract every dispatchable expert satisfies.
type Callable func(text string, ctx map[string]any) (string, error)

// Slot is one entry of the token dispatch pool.
type Slot struct {
	Name     string         `json:"name"`
	Fn       Callable       `json:"-"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// FromUnary adapts a text-only function.
func FromUnary(fn func(string) string) Callable {
	return func(text string, _ map[string]any) (string, error) {
		return fn(text), nil
	}
}

// FromBinary adapts a function that also takes the run context.
func FromBinary(fn func(string, map[string]any) string) Callable {
	return func(text string, ctx map[string]any) (string, error) {
		return fn(text, ctx), nil
	}
}

// NoopSlot returns the identity placeholder used for unfilled pool positions.
func NoopSlot(idx int) Slot {
	return Slot{
		Name:     fmt.Sprintf("expert_%d", idx),
		Fn:       NoopCallable,
		Metadata: map[string]any{"noop": true},
	}
}

// NoopCallable echoes a bounded preview of its input.
func NoopCallable(text string, _ map[string]any) (string, error) {
	r := []rune(text)
	if len(r) > noopPreview {
		r = r[:noopPreview]
	}
	return "(noop) " + string(r), nil
}
