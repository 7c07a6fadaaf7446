package locks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmorrow1204/kitchensync/internal/common"
	"github.com/jmorrow1204/kitchensync/internal/models"
)

// fakeStore keeps lock states in memory and records CAS expectations.
type fakeStore struct {
	locks        map[string]models.LockState
	lastExpected *time.Time
}

func newFakeStore(planIDs ...string) *fakeStore {
	fs := &fakeStore{locks: make(map[string]models.LockState)}
	for _, id := range planIDs {
		fs.locks[id] = models.LockState{}
	}
	return fs
}

func (fs *fakeStore) GetLock(_ context.Context, planID string) (models.LockState, error) {
	l, ok := fs.locks[planID]
	if !ok {
		return models.LockState{}, common.ErrNotFound
	}
	return l, nil
}

func (fs *fakeStore) SetLock(_ context.Context, planID string, lock models.LockState, expected *time.Time) error {
	if _, ok := fs.locks[planID]; !ok {
		return common.ErrNotFound
	}
	fs.lastExpected = expected
	fs.locks[planID] = lock
	return nil
}

func newManager(fs *fakeStore, now time.Time) *Manager {
	m := NewManager(fs)
	m.now = func() time.Time { return now }
	return m
}

func TestAcquire_Unlocked(t *testing.T) {
	fs := newFakeStore("mp1")
	now := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	m := newManager(fs, now)

	st, err := m.Acquire(context.Background(), "mp1", "alice")
	require.NoError(t, err)
	assert.True(t, st.IsLocked)
	assert.Equal(t, "alice", st.LockedBy)
	assert.True(t, st.HeldByCaller)

	// check reflects both perspectives
	stA, err := m.Check(context.Background(), "mp1", "alice")
	require.NoError(t, err)
	assert.True(t, stA.IsLocked)
	assert.True(t, stA.HeldByCaller)

	stB, err := m.Check(context.Background(), "mp1", "bob")
	require.NoError(t, err)
	assert.True(t, stB.IsLocked)
	assert.False(t, stB.HeldByCaller)
	assert.Equal(t, "alice", stB.LockedBy)
}

func TestAcquire_IdempotentForHolder(t *testing.T) {
	fs := newFakeStore("mp1")
	now := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	m := newManager(fs, now)

	_, err := m.Acquire(context.Background(), "mp1", "alice")
	require.NoError(t, err)

	// later re-acquire by the same user refreshes lockedAt
	m.now = func() time.Time { return now.Add(2 * time.Minute) }
	st, err := m.Acquire(context.Background(), "mp1", "alice")
	require.NoError(t, err)
	assert.True(t, st.HeldByCaller)
	assert.True(t, st.LockedAt.Equal(now.Add(2*time.Minute)))
}

func TestAcquire_StalenessBoundary(t *testing.T) {
	lockedAt := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

	t.Run("one tick under the timeout is held", func(t *testing.T) {
		fs := newFakeStore("mp1")
		fs.locks["mp1"] = models.LockState{LockedBy: "alice", LockedAt: &lockedAt}
		m := newManager(fs, lockedAt.Add(common.LockTimeout-time.Millisecond))

		st, err := m.Acquire(context.Background(), "mp1", "bob")
		assert.ErrorIs(t, err, ErrHeldByOther)
		require.NotNil(t, st)
		assert.Equal(t, "alice", st.LockedBy)
		assert.False(t, st.IsStale)
	})

	t.Run("one tick past the timeout transfers ownership", func(t *testing.T) {
		fs := newFakeStore("mp1")
		fs.locks["mp1"] = models.LockState{LockedBy: "alice", LockedAt: &lockedAt}
		m := newManager(fs, lockedAt.Add(common.LockTimeout+time.Millisecond))

		st, err := m.Acquire(context.Background(), "mp1", "bob")
		require.NoError(t, err)
		assert.Equal(t, "bob", st.LockedBy)
		assert.True(t, st.HeldByCaller)

		// takeover carried the previous lockedAt as the CAS expectation
		require.NotNil(t, fs.lastExpected)
		assert.True(t, fs.lastExpected.Equal(lockedAt))
	})
}

func TestAcquire_PlanNotFound(t *testing.T) {
	m := newManager(newFakeStore(), time.Now())
	_, err := m.Acquire(context.Background(), "ghost", "alice")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRelease(t *testing.T) {
	fs := newFakeStore("mp1")
	now := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	m := newManager(fs, now)

	_, err := m.Acquire(context.Background(), "mp1", "alice")
	require.NoError(t, err)

	assert.ErrorIs(t, m.Release(context.Background(), "mp1", "bob"), ErrNotHeldByUser)

	require.NoError(t, m.Release(context.Background(), "mp1", "alice"))
	st, err := m.Check(context.Background(), "mp1", "alice")
	require.NoError(t, err)
	assert.False(t, st.IsLocked)

	// releasing an unlocked plan is a no-op
	assert.NoError(t, m.Release(context.Background(), "mp1", "alice"))

	assert.ErrorIs(t, m.Release(context.Background(), "ghost", "alice"), common.ErrNotFound)
}

func TestForceUnlock(t *testing.T) {
	lockedAt := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

	fs := newFakeStore("mp1")
	fs.locks["mp1"] = models.LockState{LockedBy: "alice", LockedAt: &lockedAt}

	// fresh lock: refused, holder reported
	m := newManager(fs, lockedAt.Add(time.Minute))
	st, err := m.ForceUnlock(context.Background(), "mp1")
	assert.ErrorIs(t, err, ErrNotStale)
	require.NotNil(t, st)
	assert.Equal(t, "alice", st.LockedBy)

	// stale lock: cleared
	m = newManager(fs, lockedAt.Add(common.LockTimeout))
	st, err = m.ForceUnlock(context.Background(), "mp1")
	require.NoError(t, err)
	assert.False(t, st.IsLocked)

	// already unlocked: fine
	st, err = m.ForceUnlock(context.Background(), "mp1")
	require.NoError(t, err)
	assert.False(t, st.IsLocked)
}

func TestRefresh(t *testing.T) {
	fs := newFakeStore("mp1")
	now := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	m := newManager(fs, now)

	assert.ErrorIs(t, m.Refresh(context.Background(), "mp1", "alice"), ErrNotHeld)

	_, err := m.Acquire(context.Background(), "mp1", "alice")
	require.NoError(t, err)

	m.now = func() time.Time { return now.Add(4 * time.Minute) }
	require.NoError(t, m.Refresh(context.Background(), "mp1", "alice"))

	st, err := m.Check(context.Background(), "mp1", "alice")
	require.NoError(t, err)
	assert.True(t, st.LockedAt.Equal(now.Add(4*time.Minute)))

	assert.ErrorIs(t, m.Refresh(context.Background(), "mp1", "bob"), ErrNotHeld)
}
