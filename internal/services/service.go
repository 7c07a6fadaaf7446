// Package services contains the application services of the meal-planning
// client: optimistic local-first mutations over the cache and the offline
// queue, lock-gated meal-plan edits, and the proposal lifecycle.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/jmorrow1204/kitchensync/internal/common"
	"github.com/jmorrow1204/kitchensync/internal/models"
	"github.com/jmorrow1204/kitchensync/internal/store"
)

// PendingNotifier is poked after every local mutation so the sync state
// subscribers see the pending counter move immediately. Usually the
// reconciler; nil disables notification.
type PendingNotifier interface {
	RefreshPending(ctx context.Context)
}

// stage is the two-phase optimistic write: the record is committed locally
// as pending and the matching operation is queued, in one transaction. The
// operation is add when the entity is new to the cache, update otherwise.
func stage(ctx context.Context, st *store.Store, rec *models.Record) error {
	return st.WithTx(ctx, func(ctx context.Context, rp store.Repositories) error {
		op := models.OpUpdate
		if _, err := rp.Cache.Get(ctx, rec.Type, rec.ID); err != nil {
			if !errors.Is(err, common.ErrNotFound) {
				return err
			}
			op = models.OpAdd
		}

		rec.SyncStatus = models.StatusPending
		if err := rp.Cache.Put(ctx, rec); err != nil {
			return err
		}
		_, err := rp.Queue.Enqueue(ctx, op, rec.Type, rec.ID)
		return err
	})
}

// stageDelete tombstones the record and queues the delete. When the delete
// cancels a not-yet-pushed add, the record is dropped outright; the entity
// never reached the server, so there is nothing to tombstone.
func stageDelete(ctx context.Context, st *store.Store, t models.EntityType, id string) error {
	return st.WithTx(ctx, func(ctx context.Context, rp store.Repositories) error {
		rec, err := rp.Cache.Get(ctx, t, id)
		if err != nil {
			return err
		}

		entry, err := rp.Queue.Enqueue(ctx, models.OpDelete, t, id)
		if err != nil {
			return err
		}
		if entry == nil {
			return rp.Cache.Delete(ctx, t, id)
		}

		rec.SyncStatus = models.StatusPending
		rec.Deleted = true
		return rp.Cache.Put(ctx, rec)
	})
}

func notify(ctx context.Context, n PendingNotifier) {
	if n != nil {
		n.RefreshPending(ctx)
	}
}

// listInto decodes every live record of one type in the household.
func listInto[T any](ctx context.Context, st *store.Store, t models.EntityType, householdID string) ([]T, error) {
	recs, err := st.Cache.QueryByHousehold(ctx, t, householdID)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := rec.Into(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func getInto[T any](ctx context.Context, st *store.Store, t models.EntityType, id string) (*T, error) {
	rec, err := st.Cache.Get(ctx, t, id)
	if err != nil {
		return nil, err
	}
	var v T
	if err := rec.Into(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// clock is injectable for tests.
type clock func() time.Time
