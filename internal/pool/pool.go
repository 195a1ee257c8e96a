// Package pool bounds concurrent access to shared engine components.
package pool

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool limits concurrent callers using a weighted semaphore. A limit of 1
// turns it into a context-aware mutex, which is how the HTTP, MCP and
// worker surfaces serialize calls into a single router or orchestrator.
type Pool struct {
	sem   *semaphore.Weighted
	limit int
}

// New creates a Pool that admits at most limit concurrent calls.
func New(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit)), limit: limit}
}

// Limit returns the configured concurrency.
func (p *Pool) Limit() int {
	if p == nil {
		return 0
	}
	return p.limit
}

// Run acquires a slot, runs fn, and releases the slot.
// Returns ctx.Err() if the context is cancelled while waiting.
// A nil pool runs fn directly.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	if p == nil || p.sem == nil {
		return fn()
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}

// Do is Run for functions that produce a value.
func Do[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var out T
	err := p.Run(ctx, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}
