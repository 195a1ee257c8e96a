// Package datasetstore defines the port for durable interaction history.
package datasetstore

import (
	"context"

	"github.com/Strob0t/moecore/internal/domain/dataset"
)

// Store is an append-only log of orchestrator interactions.
// Implementations must serialize concurrent appends themselves.
type Store interface {
	// SaveExample inserts ex and sets its ID and CreatedAt.
	SaveExample(ctx context.Context, ex *dataset.Example) error

	// LoadLast returns up to n examples, newest first.
	LoadLast(ctx context.Context, n int) ([]*dataset.Example, error)

	// Count returns the number of stored examples.
	Count(ctx context.Context) (int64, error)

	Close() error
}
