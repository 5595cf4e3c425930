package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/designpm/designpm-core/internal/core/domain"
	"github.com/designpm/designpm-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.KeyValueStore = (*Store)(nil)

// Store implements driven.KeyValueStore on the kv_entries table with a byte
// quota. A key's accounted size is the length of its name plus its value.
type Store struct {
	db    *DB
	quota int64
}

// NewStore creates a PostgreSQL-backed store. quota <= 0 means unlimited.
func NewStore(db *DB, quota int64) *Store {
	if quota < 0 {
		quota = 0
	}
	return &Store{db: db, quota: quota}
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set upserts value under key. The quota check and the write share one
// transaction holding a table lock, so concurrent writers cannot both fit.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	size := int64(len(key) + len(value))

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if s.quota > 0 {
			if _, err := tx.ExecContext(ctx, `LOCK TABLE kv_entries IN SHARE ROW EXCLUSIVE MODE`); err != nil {
				return err
			}
			var others int64
			err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(SUM(size), 0) FROM kv_entries WHERE key <> $1`, key,
			).Scan(&others)
			if err != nil {
				return err
			}
			if others+size > s.quota {
				return fmt.Errorf("%d bytes, quota %d: %w", size, s.quota, domain.ErrStorageQuotaExceeded)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO kv_entries (key, value, size, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (key) DO UPDATE SET
				value = EXCLUDED.value,
				size = EXCLUDED.size,
				updated_at = EXCLUDED.updated_at
		`, key, value, size)
		return err
	})
	if err != nil {
		if isQuotaError(err) {
			return fmt.Errorf("set %s: %w", key, domain.ErrStorageQuotaExceeded)
		}
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ANY($1)`, pq.Array(keys)); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Usage sums the accounted sizes of every stored key.
func (s *Store) Usage(ctx context.Context) (int64, int64, error) {
	var used int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM kv_entries`).Scan(&used); err != nil {
		return 0, s.quota, fmt.Errorf("usage: %w", err)
	}
	return used, s.quota, nil
}

// Ping checks if the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Quota-class PostgreSQL error codes.
const (
	codeDiskFull             = "53100"
	codeProgramLimitExceeded = "54000"
)

// isQuotaError reports whether err is a quota refusal, either ours or the server running out of room.
func isQuotaError(err error) bool {
	if errors.Is(err, domain.ErrStorageQuotaExceeded) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeDiskFull, codeProgramLimitExceeded:
			return true
		}
	}
	return false
}
