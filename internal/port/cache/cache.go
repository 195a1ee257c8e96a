// Package cache defines the port for byte-oriented key-value caching of expert responses.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values by key. A miss is reported as (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value; ttl <= 0 means the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
