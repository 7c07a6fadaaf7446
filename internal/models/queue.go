package models

import "time"

// Operation is the kind of remote mutation a queue entry represents.
type Operation string

const (
	OpAdd    Operation = "add"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// QueueEntry is one pending mutation in the offline operation queue.
//
// At most one entry exists per (EntityType, EntityID) at any time: enqueueing
// a second operation for the same entity collapses into the existing entry
// (see the queue repository for the collapse rules).
type QueueEntry struct {
	ID         string
	Op         Operation
	EntityType EntityType
	EntityID   string

	// EnqueuedAt orders the queue; FIFO across entities.
	EnqueuedAt time.Time

	// Retry bookkeeping. An entry whose RetryCount reaches the configured
	// bound is excluded from automatic draining and surfaced to the caller.
	RetryCount    int
	LastAttemptAt *time.Time
	LastError     string
}
