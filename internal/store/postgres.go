package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores values in the kv_entries table created by the migrations.
// The pool is owned by the caller.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1 AND value IS NOT NULL`, key,
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return v, nil
}

const upsertEntry = `INSERT INTO kv_entries (key, value, updated_at)
VALUES ($1, $2::jsonb, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

func (s *Postgres) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, upsertEntry, key, string(value)); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (s *Postgres) SetMany(ctx context.Context, entries map[string][]byte) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for k, v := range entries {
		if _, err := tx.Exec(ctx, upsertEntry, k, string(v)); err != nil {
			return fmt.Errorf("upsert %s: %w", k, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Postgres) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = ANY($1)`, keys); err != nil {
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}

// Update locks the row for the duration of fn. A placeholder row is inserted
// first so that concurrent updates of a missing key also serialize.
func (s *Postgres) Update(ctx context.Context, key string, fn UpdateFunc) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO kv_entries (key, value) VALUES ($1, NULL) ON CONFLICT (key) DO NOTHING`, key,
	); err != nil {
		return fmt.Errorf("reserve %s: %w", key, err)
	}

	var cur []byte
	if err := tx.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1 FOR UPDATE`, key,
	).Scan(&cur); err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}

	next, err := fn(cur)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, upsertEntry, key, string(next)); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return tx.Commit(ctx)
}

func (s *Postgres) Close() error { return nil }
