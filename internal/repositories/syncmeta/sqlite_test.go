package syncmeta

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE sync_meta (key TEXT PRIMARY KEY, value BLOB NOT NULL);`)
	require.NoError(t, err)

	return db
}

func TestGetSet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	got, err := r.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got, "missing key reads as nil")

	require.NoError(t, r.Set(ctx, "k", []byte("v1")))
	require.NoError(t, r.Set(ctx, "k", []byte("v2")))

	got, err = r.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, r.Delete(ctx, "k"))
	got, err = r.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLastSyncedAt_RoundTrip(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	got, err := r.LastSyncedAt(ctx, "hh1")
	require.NoError(t, err)
	assert.Nil(t, got, "never-synced household has no watermark")

	ts := time.Date(2026, 3, 1, 9, 30, 0, 123456789, time.UTC)
	require.NoError(t, r.SetLastSyncedAt(ctx, "hh1", ts))

	got, err = r.LastSyncedAt(ctx, "hh1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(ts))

	// watermarks are per household
	other, err := r.LastSyncedAt(ctx, "hh2")
	require.NoError(t, err)
	assert.Nil(t, other)
}
