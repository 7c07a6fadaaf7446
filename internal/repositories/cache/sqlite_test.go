package cache

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmorrow1204/kitchensync/internal/common"
	"github.com/jmorrow1204/kitchensync/internal/models"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE records (
  type TEXT NOT NULL,
  id TEXT NOT NULL,
  household_id TEXT NOT NULL DEFAULT '',
  payload BLOB NOT NULL,
  sync_status TEXT NOT NULL DEFAULT 'synced',
  local_updated_at TEXT NOT NULL,
  server_updated_at TEXT,
  deleted INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (type, id)
);`)
	require.NoError(t, err)

	return db
}

func TestPut_InsertAndUpdate(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	d := models.Dish{ID: "d1", HouseholdID: "hh1", Name: "lasagna"}
	rec, err := models.WrapRecord(models.EntityDish, "hh1", "d1", d)
	require.NoError(t, err)
	rec.SyncStatus = models.StatusPending
	require.NoError(t, r.Put(ctx, rec))
	assert.False(t, rec.LocalUpdatedAt.IsZero(), "Put must stamp LocalUpdatedAt")

	got, err := r.Get(ctx, models.EntityDish, "d1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.SyncStatus)
	assert.Nil(t, got.ServerUpdatedAt)

	var back models.Dish
	require.NoError(t, got.Into(&back))
	assert.Equal(t, "lasagna", back.Name)

	// upsert with new payload and status
	d.Name = "lasagna al forno"
	rec2, err := models.WrapRecord(models.EntityDish, "hh1", "d1", d)
	require.NoError(t, err)
	rec2.SyncStatus = models.StatusSynced
	srv := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	rec2.ServerUpdatedAt = &srv
	require.NoError(t, r.Put(ctx, rec2))

	got, err = r.Get(ctx, models.EntityDish, "d1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, got.SyncStatus)
	require.NotNil(t, got.ServerUpdatedAt)
	assert.True(t, got.ServerUpdatedAt.Equal(srv))
}

func TestGet_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.Get(context.Background(), models.EntityDish, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestQueryByHousehold_SkipsTombstonesAndOtherHouseholds(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	put := func(id, hh string, deleted bool) {
		rec, err := models.WrapRecord(models.EntityDish, hh, id, models.Dish{ID: id, HouseholdID: hh})
		require.NoError(t, err)
		rec.SyncStatus = models.StatusSynced
		rec.Deleted = deleted
		require.NoError(t, r.Put(ctx, rec))
	}
	put("a", "hh1", false)
	put("b", "hh1", true)
	put("c", "hh2", false)

	got, err := r.QueryByHousehold(ctx, models.EntityDish, "hh1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestQueryPending_And_CountByStatus(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	for _, tc := range []struct {
		id     string
		status models.SyncStatus
	}{
		{"p1", models.StatusPending},
		{"p2", models.StatusPending},
		{"s1", models.StatusSynced},
	} {
		rec, err := models.WrapRecord(models.EntityDish, "hh1", tc.id, models.Dish{ID: tc.id})
		require.NoError(t, err)
		rec.SyncStatus = tc.status
		require.NoError(t, r.Put(ctx, rec))
	}

	pending, err := r.QueryPending(ctx, models.EntityDish)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	n, err := r.CountByStatus(ctx, models.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSetStatus(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	rec, err := models.WrapRecord(models.EntityMealPlan, "hh1", "mp1", models.MealPlan{ID: "mp1"})
	require.NoError(t, err)
	rec.SyncStatus = models.StatusPending
	require.NoError(t, r.Put(ctx, rec))

	srv := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, r.SetStatus(ctx, models.EntityMealPlan, "mp1", models.StatusSynced, &srv))

	got, err := r.Get(ctx, models.EntityMealPlan, "mp1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, got.SyncStatus)
	require.NotNil(t, got.ServerUpdatedAt)
	assert.True(t, got.ServerUpdatedAt.Equal(srv))

	// nil serverUpdatedAt leaves the stored timestamp alone
	require.NoError(t, r.SetStatus(ctx, models.EntityMealPlan, "mp1", models.StatusConflict, nil))
	got, err = r.Get(ctx, models.EntityMealPlan, "mp1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConflict, got.SyncStatus)
	require.NotNil(t, got.ServerUpdatedAt)
	assert.True(t, got.ServerUpdatedAt.Equal(srv))

	assert.ErrorIs(t, r.SetStatus(ctx, models.EntityMealPlan, "nope", models.StatusSynced, nil), common.ErrNotFound)
}

func TestDelete_MissingIsNoError(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	assert.NoError(t, r.Delete(context.Background(), models.EntityDish, "ghost"))
}
