package expertbackend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/moecore/internal/domain/expert"
	"github.com/Strob0t/moecore/internal/port/cache"
	"github.com/Strob0t/moecore/internal/resilience"
)

// ErrTimeout is returned by WithTimeout when the wrapped callable is too slow.
var ErrTimeout = errors.New("expert call timed out")

// WithTimeout bounds a callable's wall time. The wrapped call keeps running
// in the background after the deadline; its result is discarded.
func WithTimeout(fn expert.Callable, d time.Duration) expert.Callable {
	if d <= 0 {
		return fn
	}
	type result struct {
		out string
		err error
	}
	return func(text string, ctx map[string]any) (string, error) {
		ch := make(chan result, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					ch <- result{err: fmt.Errorf("panic: %v", r)}
				}
			}()
			out, err := fn(text, ctx)
			ch <- result{out, err}
		}()

		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case r := <-ch:
			return r.out, r.err
		case <-timer.C:
			return "", fmt.Errorf("%w after %s", ErrTimeout, d)
		}
	}
}

// WithBreaker routes calls through b so a failing backend is short-circuited.
func WithBreaker(fn expert.Callable, b *resilience.Breaker) expert.Callable {
	if b == nil {
		return fn
	}
	return func(text string, ctx map[string]any) (string, error) {
		var out string
		err := b.Execute(func() error {
			var callErr error
			out, callErr = fn(text, ctx)
			return callErr
		})
		return out, err
	}
}

// WithCache memoizes successful responses keyed by backend, expert name and input text.
// Cache errors are logged and never fail the call.
func WithCache(fn expert.Callable, c cache.Cache, backend, name string, ttl time.Duration) expert.Callable {
	if c == nil {
		return fn
	}
	return func(text string, ctx map[string]any) (string, error) {
		key := CacheKey(backend, name, text)
		bg := context.Background()

		if val, ok, err := c.Get(bg, key); err != nil {
			slog.Warn("expert cache get failed", "expert", name, "error", err)
		} else if ok {
			return string(val), nil
		}

		out, err := fn(text, ctx)
		if err != nil {
			return out, err
		}
		if err := c.Set(bg, key, []byte(out), ttl); err != nil {
			slog.Warn("expert cache set failed", "expert", name, "error", err)
		}
		return out, nil
	}
}

// CacheKey derives the cache key for one expert invocation. The result is a
// valid NATS KV key.
func CacheKey(backend, name, text string) string {
	sum := sha256.Sum256([]byte(backend + "|" + name + "|" + text))
	return "moe.expert." + hex.EncodeToString(sum[:])
}
