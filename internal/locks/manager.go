// Package locks serializes concurrent edits to a meal plan: a single-holder,
// renewable lock with a staleness timeout and takeover. The decision logic
// lives in Manager and is identical whether the lock fields come from the
// local cache (offline) or the remote backend (online); only the Store
// differs.
package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmorrow1204/kitchensync/internal/common"
	"github.com/jmorrow1204/kitchensync/internal/models"
)

// Lock-contention outcomes. These are logical results, not engine failures;
// callers branch on them with errors.Is.
var (
	// ErrHeldByOther: the plan is locked by someone else and the lock is
	// still fresh.
	ErrHeldByOther = errors.New("plan is locked by another user")

	// ErrNotStale: forceUnlock refused because the holder is still active.
	ErrNotStale = errors.New("lock is not stale")

	// ErrNotHeld: refresh by a user who does not hold the lock.
	ErrNotHeld = errors.New("lock is not held by this user")

	// ErrNotHeldByUser: release naming a user other than the holder.
	ErrNotHeldByUser = errors.New("lock is held by a different user")
)

// Status is the read model of a plan's lock, relative to one caller.
type Status struct {
	IsLocked     bool
	LockedBy     string
	LockedAt     *time.Time
	IsStale      bool
	HeldByCaller bool
}

// Store reads and writes one plan's lock fields. GetLock returns
// common.ErrNotFound when the plan does not exist. SetLock replaces the
// fields; implementations backed by the server compare expected against the
// stored lockedAt and fail with ErrHeldByOther on a mismatch, which makes
// simultaneous takeovers of the same stale lock resolve to a single winner.
type Store interface {
	GetLock(ctx context.Context, planID string) (models.LockState, error)
	SetLock(ctx context.Context, planID string, lock models.LockState, expected *time.Time) error
}

// Manager evaluates the lock state machine for meal plans.
type Manager struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, timeout: common.LockTimeout, now: time.Now}
}

func (m *Manager) status(l models.LockState, userID string, now time.Time) *Status {
	return &Status{
		IsLocked:     l.Held(),
		LockedBy:     l.LockedBy,
		LockedAt:     l.LockedAt,
		IsStale:      l.StaleAt(now, m.timeout),
		HeldByCaller: l.Held() && userID != "" && l.LockedBy == userID,
	}
}

// Acquire takes the lock for userID. Succeeds when the plan is unlocked,
// already held by userID (an idempotent refresh), or held by someone whose
// lock has gone stale (takeover). Fails with ErrHeldByOther when the current
// holder is still active; the returned Status names the holder.
func (m *Manager) Acquire(ctx context.Context, planID, userID string) (*Status, error) {
	cur, err := m.store.GetLock(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to read lock for plan %s: %w", planID, err)
	}

	now := m.now().UTC()
	if cur.Held() && cur.LockedBy != userID && !cur.StaleAt(now, m.timeout) {
		return m.status(cur, userID, now), ErrHeldByOther
	}

	next := models.LockState{LockedBy: userID, LockedAt: &now}
	if err := m.store.SetLock(ctx, planID, next, cur.LockedAt); err != nil {
		return nil, err
	}
	return m.status(next, userID, now), nil
}

// Release clears the lock. With a non-empty userID the release is refused
// with ErrNotHeldByUser when someone else holds the lock; with an empty
// userID the lock is cleared unconditionally.
func (m *Manager) Release(ctx context.Context, planID, userID string) error {
	cur, err := m.store.GetLock(ctx, planID)
	if err != nil {
		return fmt.Errorf("failed to read lock for plan %s: %w", planID, err)
	}

	if userID != "" && cur.Held() && cur.LockedBy != userID {
		return ErrNotHeldByUser
	}
	if !cur.Held() {
		return nil
	}
	return m.store.SetLock(ctx, planID, models.LockState{}, cur.LockedAt)
}

// ForceUnlock clears a stale lock. When the lock is fresh it refuses with
// ErrNotStale and returns the current holder for user-facing messaging.
func (m *Manager) ForceUnlock(ctx context.Context, planID string) (*Status, error) {
	cur, err := m.store.GetLock(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to read lock for plan %s: %w", planID, err)
	}

	now := m.now().UTC()
	if !cur.Held() {
		return m.status(cur, "", now), nil
	}
	if !cur.StaleAt(now, m.timeout) {
		return m.status(cur, "", now), ErrNotStale
	}
	if err := m.store.SetLock(ctx, planID, models.LockState{}, cur.LockedAt); err != nil {
		return nil, err
	}
	return m.status(models.LockState{}, "", now), nil
}

// Refresh bumps lockedAt to now for the current holder; any other caller
// gets ErrNotHeld.
func (m *Manager) Refresh(ctx context.Context, planID, userID string) error {
	cur, err := m.store.GetLock(ctx, planID)
	if err != nil {
		return fmt.Errorf("failed to read lock for plan %s: %w", planID, err)
	}

	if !cur.Held() || cur.LockedBy != userID {
		return ErrNotHeld
	}

	now := m.now().UTC()
	return m.store.SetLock(ctx, planID, models.LockState{LockedBy: userID, LockedAt: &now}, cur.LockedAt)
}

// Check is a pure read of the lock state relative to userID.
func (m *Manager) Check(ctx context.Context, planID, userID string) (*Status, error) {
	cur, err := m.store.GetLock(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to read lock for plan %s: %w", planID, err)
	}
	return m.status(cur, userID, m.now().UTC()), nil
}
