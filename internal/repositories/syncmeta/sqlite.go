// Package syncmeta stores scalar sync state (pull watermarks and similar) in
// a key-value table.
package syncmeta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmorrow1204/kitchensync/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get returns nil without error for a missing key.
func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM sync_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync_meta[%s]: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set sync_meta[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_meta WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete sync_meta[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_meta`)
	if err != nil {
		return fmt.Errorf("failed to clear sync_meta: %w", err)
	}
	return nil
}

func lastSyncedKey(householdID string) string {
	return "last_synced_at:" + householdID
}

func (r *SQLiteRepository) LastSyncedAt(ctx context.Context, householdID string) (*time.Time, error) {
	b, err := r.Get(ctx, lastSyncedKey(householdID))
	if err != nil || b == nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, string(b))
	if err != nil {
		return nil, fmt.Errorf("bad last_synced_at for household %s: %w", householdID, err)
	}
	return &t, nil
}

func (r *SQLiteRepository) SetLastSyncedAt(ctx context.Context, householdID string, t time.Time) error {
	return r.Set(ctx, lastSyncedKey(householdID), []byte(t.UTC().Format(time.RFC3339Nano)))
}
