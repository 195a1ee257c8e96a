package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/moecore/internal/config"
	"github.com/Strob0t/moecore/internal/domain/dataset"
)

// Store implements datasetstore.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open applies pending migrations and connects a pool.
func Open(ctx context.Context, cfg config.Postgres) (*Store, error) {
	if err := RunMigrations(ctx, cfg.DSN); err != nil {
		return nil, err
	}
	if v, err := MigrationVersion(ctx, cfg.DSN); err == nil {
		slog.Info("postgres dataset ready", "migration_version", v)
	}
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewStore(pool), nil
}

func (s *Store) SaveExample(ctx context.Context, ex *dataset.Example) error {
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}
	outputs := ex.ExpertOutputs
	if outputs == nil {
		outputs = map[string][]string{}
	}
	raw, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("marshal expert outputs: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO examples (ts, prompt, scrubbed, expert_outputs)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		ex.CreatedAt, ex.Prompt, ex.Scrubbed, raw,
	).Scan(&ex.ID)
	if err != nil {
		return fmt.Errorf("insert example: %w", err)
	}
	return nil
}

func (s *Store) LoadLast(ctx context.Context, n int) ([]*dataset.Example, error) {
	if n <= 0 {
		return []*dataset.Example{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, ts, prompt, scrubbed, expert_outputs
		 FROM examples ORDER BY id DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("load examples: %w", err)
	}
	defer rows.Close()

	out := make([]*dataset.Example, 0, n)
	for rows.Next() {
		var (
			ex  dataset.Example
			raw []byte
		)
		if err := rows.Scan(&ex.ID, &ex.CreatedAt, &ex.Prompt, &ex.Scrubbed, &raw); err != nil {
			return nil, fmt.Errorf("scan example: %w", err)
		}
		if err := json.Unmarshal(raw, &ex.ExpertOutputs); err != nil {
			return nil, fmt.Errorf("decode expert outputs for example %d: %w", ex.ID, err)
		}
		ex.CreatedAt = ex.CreatedAt.UTC()
		out = append(out, &ex)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM examples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count examples: %w", err)
	}
	return n, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
