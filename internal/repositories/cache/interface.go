package cache

import (
	"context"
	"time"

	"github.com/jmorrow1204/kitchensync/internal/models"
)

// Repository is the local cache store: durable per-device storage of entity
// records with indexed lookup by id, household and sync status. All
// operations are local; storage failures are returned, never swallowed.
type Repository interface {
	// Get returns the record for (t, id), or common.ErrNotFound.
	Get(ctx context.Context, t models.EntityType, id string) (*models.Record, error)

	// Put upserts a record, stamping LocalUpdatedAt. SyncStatus is taken
	// from the record as given; the caller decides it.
	Put(ctx context.Context, rec *models.Record) error

	// Delete removes the record outright. Missing records are not an error.
	Delete(ctx context.Context, t models.EntityType, id string) error

	// QueryByHousehold lists live (non-tombstone) records of one type in a
	// household, ordered by id.
	QueryByHousehold(ctx context.Context, t models.EntityType, householdID string) ([]models.Record, error)

	// QueryPending lists records of one type whose status is pending.
	QueryPending(ctx context.Context, t models.EntityType) ([]models.Record, error)

	// SetStatus updates only the sync metadata of a record. A nil
	// serverUpdatedAt leaves the stored server timestamp untouched.
	SetStatus(ctx context.Context, t models.EntityType, id string, status models.SyncStatus, serverUpdatedAt *time.Time) error

	// CountByStatus reports how many records of any type carry the status.
	CountByStatus(ctx context.Context, status models.SyncStatus) (int, error)
}
