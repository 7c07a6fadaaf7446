package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmorrow1204/kitchensync/internal/backend"
	"github.com/jmorrow1204/kitchensync/internal/common"
	"github.com/jmorrow1204/kitchensync/internal/models"
	"github.com/jmorrow1204/kitchensync/internal/store"
)

// CacheStore keeps lock fields on the cached meal-plan record. Writes go
// through the usual two-phase path (record marked pending, update queued) so
// an offline lock travels to the server on the next sync. The expected
// timestamp is ignored here: a single device has no concurrent writer, and
// cross-device divergence resolves last-write-wins on lockedAt at sync time.
type CacheStore struct {
	store *store.Store
}

func NewCacheStore(s *store.Store) *CacheStore {
	return &CacheStore{store: s}
}

func (cs *CacheStore) getPlan(ctx context.Context, r store.Repositories, planID string) (*models.Record, *models.MealPlan, error) {
	rec, err := r.Cache.Get(ctx, models.EntityMealPlan, planID)
	if err != nil {
		return nil, nil, err
	}
	if rec.Deleted {
		return nil, nil, common.ErrNotFound
	}
	plan := &models.MealPlan{}
	if err := rec.Into(plan); err != nil {
		return nil, nil, fmt.Errorf("failed to decode plan %s: %w", planID, err)
	}
	return rec, plan, nil
}

func (cs *CacheStore) GetLock(ctx context.Context, planID string) (models.LockState, error) {
	_, plan, err := cs.getPlan(ctx, cs.store.Repositories, planID)
	if err != nil {
		return models.LockState{}, err
	}
	return plan.Lock(), nil
}

func (cs *CacheStore) SetLock(ctx context.Context, planID string, lock models.LockState, _ *time.Time) error {
	return cs.store.WithTx(ctx, func(ctx context.Context, r store.Repositories) error {
		rec, plan, err := cs.getPlan(ctx, r, planID)
		if err != nil {
			return err
		}
		plan.SetLock(lock)

		next, err := models.WrapRecord(models.EntityMealPlan, rec.HouseholdID, planID, plan)
		if err != nil {
			return err
		}
		next.SyncStatus = models.StatusPending
		next.ServerUpdatedAt = rec.ServerUpdatedAt
		if err := r.Cache.Put(ctx, next); err != nil {
			return err
		}
		_, err = r.Queue.Enqueue(ctx, models.OpUpdate, models.EntityMealPlan, planID)
		return err
	})
}

// BackendStore evaluates locks directly against the server's lock endpoints.
// A compare-and-swap miss on the write maps to ErrHeldByOther: the other
// device already won.
type BackendStore struct {
	client backend.Client
}

func NewBackendStore(client backend.Client) *BackendStore {
	return &BackendStore{client: client}
}

func (bs *BackendStore) GetLock(ctx context.Context, planID string) (models.LockState, error) {
	lock, err := bs.client.ReadLock(ctx, planID)
	if errors.Is(err, backend.ErrNotFound) {
		return models.LockState{}, common.ErrNotFound
	}
	if err != nil {
		return models.LockState{}, err
	}
	return *lock, nil
}

func (bs *BackendStore) SetLock(ctx context.Context, planID string, lock models.LockState, expected *time.Time) error {
	err := bs.client.WriteLock(ctx, planID, lock, expected)
	if errors.Is(err, backend.ErrLockConflict) {
		return ErrHeldByOther
	}
	if errors.Is(err, backend.ErrNotFound) {
		return common.ErrNotFound
	}
	return err
}

// SwitchStore routes lock operations to the backend while online and to the
// local cache while offline. The offline copy is authoritative until the
// next sync reconciles it.
type SwitchStore struct {
	Remote Store
	Local  Store
	Online func() bool
}

func (ss *SwitchStore) pick() Store {
	if ss.Online() {
		return ss.Remote
	}
	return ss.Local
}

func (ss *SwitchStore) GetLock(ctx context.Context, planID string) (models.LockState, error) {
	return ss.pick().GetLock(ctx, planID)
}

func (ss *SwitchStore) SetLock(ctx context.Context, planID string, lock models.LockState, expected *time.Time) error {
	return ss.pick().SetLock(ctx, planID, lock, expected)
}
