package queue

import (
	"context"

	"github.com/jmorrow1204/kitchensync/internal/models"
)

// Repository is the offline operation queue: an ordered, deduplicating log of
// local mutations awaiting remote acknowledgment.
//
// The deduplication invariant: at most one entry exists per
// (EntityType, EntityID). Enqueue folds a new operation into any existing
// entry for the entity; callers that may race must run Enqueue inside a
// transaction (the store's WithTx) so the read-collapse-write is atomic.
type Repository interface {
	// Enqueue records a mutation, applying the collapse rules against any
	// existing entry for the entity:
	//
	//	add    + delete → both dropped (the entity never reached the server)
	//	add    + update → stays add
	//	update + update → stays update
	//	any    + delete → becomes delete
	//	delete + any    → stays delete (new operation ignored)
	//
	// Returns the resulting entry, or nil when the operations cancelled out.
	Enqueue(ctx context.Context, op models.Operation, t models.EntityType, entityID string) (*models.QueueEntry, error)

	// List returns all entries in FIFO order by enqueue time.
	List(ctx context.Context) ([]models.QueueEntry, error)

	// ListRetryable returns FIFO entries with RetryCount < maxRetries.
	ListRetryable(ctx context.Context, maxRetries int) ([]models.QueueEntry, error)

	// ListExhausted returns entries with RetryCount >= maxRetries. These
	// need user-visible resolution and are excluded from automatic drains.
	ListExhausted(ctx context.Context, maxRetries int) ([]models.QueueEntry, error)

	// GetForEntity returns the entry pending for an entity, or common.ErrNotFound.
	GetForEntity(ctx context.Context, entityID string) (*models.QueueEntry, error)

	// Count returns the number of entries.
	Count(ctx context.Context) (int, error)

	// Dequeue removes an entry after its remote application succeeded.
	Dequeue(ctx context.Context, entryID string) error

	// MarkAttempt increments RetryCount and records the attempt time and
	// error text.
	MarkAttempt(ctx context.Context, entryID string, attemptErr error) error

	// ResetAttempts zeroes the retry bookkeeping so a hard-failed entry is
	// drained again.
	ResetAttempts(ctx context.Context, entryID string) error

	// ClearForEntity drops any entry for the entity.
	ClearForEntity(ctx context.Context, entityID string) error

	// ClearAll empties the queue.
	ClearAll(ctx context.Context) error
}
