package syncmeta

import (
	"context"
	"time"
)

// Repository is a small key-value table for per-household sync scalars, most
// importantly the last successful pull timestamp.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error

	// LastSyncedAt returns the recorded pull watermark for the household,
	// or nil when the household has never completed a full sync.
	LastSyncedAt(ctx context.Context, householdID string) (*time.Time, error)
	SetLastSyncedAt(ctx context.Context, householdID string, t time.Time) error
}
