// Package sqlite implements the dataset store on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Register the "sqlite" database/sql driver

	"github.com/Strob0t/moecore/internal/domain/dataset"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements datasetstore.Store on a single SQLite connection.
// Writes are serialized by mu.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
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

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO examples (ts, prompt, scrubbed, expert_outputs) VALUES (?, ?, ?, ?)`,
		ex.CreatedAt.UTC().Format(time.RFC3339Nano), ex.Prompt, ex.Scrubbed, string(raw))
	if err != nil {
		return fmt.Errorf("insert example: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert example id: %w", err)
	}
	ex.ID = id
	return nil
}

func (s *Store) LoadLast(ctx context.Context, n int) ([]*dataset.Example, error) {
	if n <= 0 {
		return []*dataset.Example{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, prompt, scrubbed, expert_outputs FROM examples ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("load examples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*dataset.Example, 0, n)
	for rows.Next() {
		var (
			ex      dataset.Example
			ts, raw string
		)
		if err := rows.Scan(&ex.ID, &ts, &ex.Prompt, &ex.Scrubbed, &raw); err != nil {
			return nil, fmt.Errorf("scan example: %w", err)
		}
		if ex.CreatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse ts for example %d: %w", ex.ID, err)
		}
		if err := json.Unmarshal([]byte(raw), &ex.ExpertOutputs); err != nil {
			return nil, fmt.Errorf("decode expert outputs for example %d: %w", ex.ID, err)
		}
		out = append(out, &ex)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM examples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count examples: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
