// Package models defines the data types shared by the KitchenSync engine:
// the cached-record envelope, the household domain entities, offline queue
// entries and meal proposals.
package models

import (
	"encoding/json"
	"time"
)

// EntityType classifies a cached entity kind.
type EntityType string

const (
	EntityProfile   EntityType = "profile"
	EntityHousehold EntityType = "household"
	EntityMember    EntityType = "member"
	EntityDish      EntityType = "dish"
	EntityMealPlan  EntityType = "mealplan"
	EntityProposal  EntityType = "proposal"
)

// SyncStatus describes how a cached record relates to the last known
// server state.
type SyncStatus string

const (
	// StatusSynced means the record matches the last acknowledged server state.
	StatusSynced SyncStatus = "synced"
	// StatusPending means the record has local changes not yet acknowledged;
	// a matching offline queue entry must exist.
	StatusPending SyncStatus = "pending"
	// StatusConflict means local and remote diverged. The engine detects but
	// never auto-resolves this state.
	StatusConflict SyncStatus = "conflict"
)

// Record is the envelope persisted in the local cache for every entity.
// Domain fields live in Payload as JSON; sync metadata lives alongside.
type Record struct {
	// Type and ID together identify the entity.
	Type EntityType
	ID   string

	// HouseholdID scopes the entity to a household. Empty for profiles.
	HouseholdID string

	// Payload is the JSON-encoded domain entity.
	Payload json.RawMessage

	// SyncStatus tracks divergence from the server copy.
	SyncStatus SyncStatus

	// LocalUpdatedAt is the time of the last local write, in UTC.
	LocalUpdatedAt time.Time

	// ServerUpdatedAt is the server timestamp of the last acknowledged remote
	// write. For a pending record it is the base the local change was made
	// against; nil if the entity never reached the server.
	ServerUpdatedAt *time.Time

	// Deleted marks the record as a tombstone awaiting remote acknowledgment.
	Deleted bool
}

// WrapRecord encodes a domain entity into a cache envelope. SyncStatus and
// timestamps are left for the caller to set.
func WrapRecord(t EntityType, householdID, id string, v any) (*Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Record{Type: t, ID: id, HouseholdID: householdID, Payload: b}, nil
}

// Into decodes the record payload into v.
func (r *Record) Into(v any) error {
	return json.Unmarshal(r.Payload, v)
}
