package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLStore keeps state in the device_state table.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

type stateRow struct {
	Value     string        `db:"value"`
	ExpiresAt sql.NullInt64 `db:"expires_at"`
}

func (s *SQLStore) Get(ctx context.Context, scope, key string) ([]byte, error) {
	var row stateRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT value, expires_at FROM device_state WHERE scope = ? AND state_key = ?`), scope, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select state failed: %w", err)
	}
	if row.ExpiresAt.Valid && s.now().UnixMilli() >= row.ExpiresAt.Int64 {
		if err := s.Delete(ctx, scope, key); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return []byte(row.Value), nil
}

func (s *SQLStore) Set(ctx context.Context, scope, key string, value []byte, ttl time.Duration) error {
	expires := sql.NullInt64{}
	if ttl > 0 {
		expires = sql.NullInt64{Int64: s.now().Add(ttl).UnixMilli(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO device_state (scope, state_key, value, expires_at, updated_at)
                VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
                ON CONFLICT (scope, state_key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at, updated_at = CURRENT_TIMESTAMP`),
		scope, key, string(value), expires)
	if err != nil {
		return fmt.Errorf("upsert state failed: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, scope, key string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM device_state WHERE scope = ? AND state_key = ?`), scope, key); err != nil {
		return fmt.Errorf("delete state failed: %w", err)
	}
	return nil
}
