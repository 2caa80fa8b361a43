package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nci-backend/internal/shared/storage/kv"
)

// Store implements kv.Store over the goose-managed snapshots table.
type Store struct {
	DB *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value FROM snapshots WHERE key = $1`
	var value []byte
	if err := s.DB.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, kv.ErrNotFound
		}
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	return value, nil
}

// Put upserts value under key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	const query = `
INSERT INTO snapshots (key, value, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := s.DB.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

var _ kv.Store = (*Store)(nil)
