// Package backend defines the narrow interface to the remote meal-planning
// backend and its HTTP implementation. The engine only ever talks to the
// server through this package.
package backend

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmorrow1204/kitchensync/internal/models"
)

// Record is the wire form of an entity as the server stores it.
type Record struct {
	Type        models.EntityType `json:"type"`
	ID          string            `json:"id"`
	HouseholdID string            `json:"household_id"`
	Payload     json.RawMessage   `json:"payload"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Deleted     bool              `json:"deleted,omitempty"`
}

// Ack is the server's acknowledgment of a pushed mutation.
type Ack struct {
	ServerUpdatedAt time.Time `json:"server_updated_at"`
}

// Event is one change delivered over the real-time channel.
type Event struct {
	Record Record `json:"record"`
	Cursor string `json:"cursor"`
}

// Client is the remote backend collaborator. All calls honor ctx deadlines;
// network failures map to ErrUnavailable so callers can treat them as
// retryable.
type Client interface {
	// Ping probes server reachability.
	Ping(ctx context.Context) error

	// FetchHousehold returns the household's records, restricted to those
	// changed since the given time when since is non-nil.
	FetchHousehold(ctx context.Context, householdID string, since *time.Time) ([]Record, error)

	// PushCreate / PushUpdate / PushDelete apply one local mutation remotely
	// and return the server's authoritative timestamp.
	PushCreate(ctx context.Context, rec Record) (*Ack, error)
	PushUpdate(ctx context.Context, rec Record) (*Ack, error)
	PushDelete(ctx context.Context, t models.EntityType, id string) (*Ack, error)

	// ReadLock returns the current lock fields of a meal plan.
	ReadLock(ctx context.Context, planID string) (*models.LockState, error)

	// WriteLock replaces the lock fields. The server compares expected with
	// the stored lockedAt and rejects the write with ErrLockConflict when
	// they differ, so two devices cannot both win a takeover.
	WriteLock(ctx context.Context, planID string, lock models.LockState, expected *time.Time) error

	// Subscribe starts delivering the household's remote changes to onChange
	// until the returned stop function is called or ctx is cancelled. At
	// most one subscription per household should be active; no callbacks
	// are delivered after stop returns.
	Subscribe(ctx context.Context, householdID string, onChange func(Record)) (stop func(), err error)

	Close() error
}
