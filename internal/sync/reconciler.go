// Package sync implements the reconciler that keeps the local cache and the
// remote backend converging: it drains the offline queue (push), merges
// remote state into the cache (pull), folds real-time events through the
// same merge, and exposes sync state to subscribers.
package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/jmorrow1204/kitchensync/internal/backend"
	"github.com/jmorrow1204/kitchensync/internal/common"
	"github.com/jmorrow1204/kitchensync/internal/logging"
	"github.com/jmorrow1204/kitchensync/internal/models"
	"github.com/jmorrow1204/kitchensync/internal/store"
)

// State is the process-wide sync state exposed to subscribers.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateOffline State = "offline"
)

// pushParallelism bounds concurrent pushes of independent entities. The
// queue holds at most one entry per entity, so parallel drains never
// reorder a single entity's operations.
const pushParallelism = 4

// attemptBackoff is the base of the in-call fibonacci backoff; transient
// network failures get a couple of quick retries before the attempt is
// recorded against the queue entry.
const attemptBackoff = 500 * time.Millisecond

// StateListener receives the sync state and the pending-change count.
type StateListener func(state State, pendingCount int)

// DataListener is notified after remote changes land in the cache.
type DataListener func()

// Attention describes work the reconciler cannot finish on its own: queue
// entries past the retry bound and cache entities in conflict.
type Attention struct {
	Exhausted []models.QueueEntry
	Conflicts int
}

// Reconciler synchronizes one household's data. Construct one per active
// household session and Close it on switch-away.
type Reconciler struct {
	store       *store.Store
	remote      backend.Client
	log         logging.Logger
	householdID string

	maxRetries int
	retryBase  time.Duration
	now        func() time.Time

	mu           stdsync.Mutex
	online       bool
	syncing      bool
	fullResync   bool
	pending      int
	nextListener int
	stateSubs    map[int]StateListener
	dataSubs     map[int]DataListener
	inflight     map[string]struct{}
	stopRealtime func()
}

func NewReconciler(st *store.Store, remote backend.Client, householdID string, log logging.Logger) *Reconciler {
	return &Reconciler{
		store:       st,
		remote:      remote,
		log:         log,
		householdID: householdID,
		maxRetries:  common.MaxQueueRetries,
		retryBase:   attemptBackoff,
		now:         time.Now,
		stateSubs:   make(map[int]StateListener),
		dataSubs:    make(map[int]DataListener),
		inflight:    make(map[string]struct{}),
	}
}

// OnSyncStateChange registers a listener for state transitions and returns
// its unsubscribe function. The listener is invoked immediately with the
// current state.
func (r *Reconciler) OnSyncStateChange(fn StateListener) func() {
	r.mu.Lock()
	id := r.nextListener
	r.nextListener++
	r.stateSubs[id] = fn
	state, pending := r.stateLocked(), r.pending
	r.mu.Unlock()

	fn(state, pending)
	return func() {
		r.mu.Lock()
		delete(r.stateSubs, id)
		r.mu.Unlock()
	}
}

// OnDataChange registers a listener invoked after remote changes are merged
// into the cache, and returns its unsubscribe function.
func (r *Reconciler) OnDataChange(fn DataListener) func() {
	r.mu.Lock()
	id := r.nextListener
	r.nextListener++
	r.dataSubs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.dataSubs, id)
		r.mu.Unlock()
	}
}

func (r *Reconciler) stateLocked() State {
	switch {
	case r.syncing:
		return StateSyncing
	case !r.online:
		return StateOffline
	default:
		return StateIdle
	}
}

// State reports the current sync state and pending-change count.
func (r *Reconciler) State() (State, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked(), r.pending
}

func (r *Reconciler) notifyState() {
	r.mu.Lock()
	state, pending := r.stateLocked(), r.pending
	subs := make([]StateListener, 0, len(r.stateSubs))
	for _, fn := range r.stateSubs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		fn(state, pending)
	}
}

func (r *Reconciler) notifyData() {
	r.mu.Lock()
	subs := make([]DataListener, 0, len(r.dataSubs))
	for _, fn := range r.dataSubs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// RefreshPending recomputes the pending-change counter from the queue and
// notifies subscribers when it moved. Call it after local mutations enqueue
// or clear work.
func (r *Reconciler) RefreshPending(ctx context.Context) {
	n, err := r.store.Queue.Count(ctx)
	if err != nil {
		r.log.Error(ctx, "failed to count pending operations", "error", err)
		return
	}

	r.mu.Lock()
	changed := r.pending != n
	r.pending = n
	r.mu.Unlock()

	if changed {
		r.notifyState()
	}
}

// SetOnline records connectivity as observed by the caller's probe. Going
// online does not start a sync by itself; the caller (or the Start loop)
// decides when to drain.
func (r *Reconciler) SetOnline(online bool) {
	r.mu.Lock()
	changed := r.online != online
	r.online = online
	r.mu.Unlock()

	if changed {
		r.notifyState()
	}
}

// Online reports the last connectivity observation.
func (r *Reconciler) Online() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online
}

// SyncNow runs one full reconciliation pass: drain the queue, then pull
// remote changes. At most one pass runs at a time; a second caller gets
// common.ErrSyncInProgress. The pass is idempotent; re-running it never
// duplicates or loses queue entries.
func (r *Reconciler) SyncNow(ctx context.Context) error {
	r.mu.Lock()
	if r.syncing {
		r.mu.Unlock()
		return common.ErrSyncInProgress
	}
	r.syncing = true
	r.mu.Unlock()
	r.notifyState()

	defer func() {
		r.mu.Lock()
		r.syncing = false
		r.mu.Unlock()
		r.notifyState()
	}()

	pushErr := r.push(ctx)
	pullErr := r.pull(ctx)
	r.RefreshPending(ctx)

	if pushErr != nil {
		return pushErr
	}
	return pullErr
}

// push drains retryable queue entries oldest first. Independent entities
// drain in parallel; an entity already mid-flight is skipped until its
// attempt finishes.
func (r *Reconciler) push(ctx context.Context) error {
	entries, err := r.store.Queue.ListRetryable(ctx, r.maxRetries)
	if err != nil {
		return fmt.Errorf("failed to list queue: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pushParallelism)

	for _, e := range entries {
		e := e
		r.mu.Lock()
		if _, busy := r.inflight[e.EntityID]; busy {
			r.mu.Unlock()
			continue
		}
		r.inflight[e.EntityID] = struct{}{}
		r.mu.Unlock()

		g.Go(func() error {
			defer func() {
				r.mu.Lock()
				delete(r.inflight, e.EntityID)
				r.mu.Unlock()
			}()
			return r.pushEntry(ctx, e)
		})
	}
	return g.Wait()
}

// errConflictHeld marks an entry whose cache record is in conflict; it is
// held back from the drain until the user resolves it.
var errConflictHeld = errors.New("entity in conflict")

// pushEntry applies one queue entry remotely. On success the cache status
// and the queue are updated in one transaction, detached from ctx so a
// cancellation arriving after the remote write cannot strand the entry. On
// failure the attempt is recorded and the entry stays queued.
func (r *Reconciler) pushEntry(ctx context.Context, e models.QueueEntry) error {
	ack, basedOn, err := r.attempt(ctx, e)
	if errors.Is(err, errConflictHeld) {
		return nil
	}
	if err != nil {
		r.log.Warn(ctx, "push attempt failed",
			"op", e.Op, "entity", e.EntityID, "retries", e.RetryCount+1, "error", err)
		if markErr := r.store.Queue.MarkAttempt(context.WithoutCancel(ctx), e.ID, err); markErr != nil {
			return fmt.Errorf("failed to record push attempt: %w", markErr)
		}
		if errors.Is(err, backend.ErrUnavailable) {
			r.SetOnline(false)
		}
		return nil
	}

	commit := func(ctx context.Context, rp store.Repositories) error {
		if e.Op == models.OpDelete {
			rec, err := rp.Cache.Get(ctx, e.EntityType, e.EntityID)
			if err != nil && !errors.Is(err, common.ErrNotFound) {
				return err
			}
			if rec != nil {
				if rec.SyncStatus == models.StatusConflict {
					return nil
				}
				if err := rp.Cache.Delete(ctx, e.EntityType, e.EntityID); err != nil {
					return err
				}
			}
			return rp.Queue.Dequeue(ctx, e.ID)
		}

		rec, err := rp.Cache.Get(ctx, e.EntityType, e.EntityID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return rp.Queue.Dequeue(ctx, e.ID)
			}
			return err
		}
		if rec.SyncStatus != models.StatusPending || !rec.LocalUpdatedAt.Equal(basedOn) {
			// The record moved while the push was in flight. A newer local
			// edit collapsed into this entry: keep it queued and pending,
			// advancing only the server base the pending change now sits on.
			// A record flipped to conflict mid-flight is left for review.
			if rec.SyncStatus == models.StatusPending {
				return rp.Cache.SetStatus(ctx, e.EntityType, e.EntityID, models.StatusPending, &ack.ServerUpdatedAt)
			}
			return nil
		}
		if err := rp.Cache.SetStatus(ctx, e.EntityType, e.EntityID, models.StatusSynced, &ack.ServerUpdatedAt); err != nil {
			return err
		}
		return rp.Queue.Dequeue(ctx, e.ID)
	}
	if err := r.store.WithTx(context.WithoutCancel(ctx), commit); err != nil {
		return fmt.Errorf("failed to commit push acknowledgment: %w", err)
	}
	return nil
}

// attempt performs the remote call for a queue entry with a short in-call
// backoff for transient network failures. The returned time is the
// LocalUpdatedAt of the cache record the push carried, so the ack commit can
// detect edits that landed while the call was in flight.
func (r *Reconciler) attempt(ctx context.Context, e models.QueueEntry) (*backend.Ack, time.Time, error) {
	var ack *backend.Ack
	var basedOn time.Time
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(r.retryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		switch e.Op {
		case models.OpDelete:
			rec, getErr := r.store.Cache.Get(ctx, e.EntityType, e.EntityID)
			if getErr != nil && !errors.Is(getErr, common.ErrNotFound) {
				return getErr
			}
			if rec != nil {
				if rec.SyncStatus == models.StatusConflict {
					return errConflictHeld
				}
				basedOn = rec.LocalUpdatedAt
			}
			ack, err = r.remote.PushDelete(ctx, e.EntityType, e.EntityID)
			if errors.Is(err, backend.ErrNotFound) {
				// already gone remotely; treat as acknowledged
				ack, err = &backend.Ack{ServerUpdatedAt: r.now().UTC()}, nil
			}
		case models.OpAdd, models.OpUpdate:
			rec, getErr := r.store.Cache.Get(ctx, e.EntityType, e.EntityID)
			if getErr != nil {
				return getErr
			}
			if rec.SyncStatus == models.StatusConflict {
				return errConflictHeld
			}
			basedOn = rec.LocalUpdatedAt
			wire := backend.Record{
				Type:        rec.Type,
				ID:          rec.ID,
				HouseholdID: rec.HouseholdID,
				Payload:     rec.Payload,
				UpdatedAt:   rec.LocalUpdatedAt,
				Deleted:     rec.Deleted,
			}
			if e.Op == models.OpAdd {
				ack, err = r.remote.PushCreate(ctx, wire)
			} else {
				ack, err = r.remote.PushUpdate(ctx, wire)
			}
		default:
			return fmt.Errorf("unknown queue operation %q", e.Op)
		}
		if errors.Is(err, backend.ErrUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	return ack, basedOn, nil
}

// pull fetches remote records for the household, incrementally from the
// last sync watermark when one exists, and merges them in arrival order.
func (r *Reconciler) pull(ctx context.Context) error {
	r.mu.Lock()
	full := r.fullResync
	r.mu.Unlock()

	var since *time.Time
	if !full {
		var err error
		since, err = r.store.Meta.LastSyncedAt(ctx, r.householdID)
		if err != nil {
			return fmt.Errorf("failed to read sync watermark: %w", err)
		}
	}

	recs, err := r.remote.FetchHousehold(ctx, r.householdID, since)
	if err != nil {
		if errors.Is(err, backend.ErrUnavailable) {
			r.SetOnline(false)
		}
		return fmt.Errorf("failed to fetch household state: %w", err)
	}

	merged := false
	var newest time.Time
	for _, rec := range recs {
		err := r.store.WithTx(ctx, func(ctx context.Context, rp store.Repositories) error {
			return r.mergeRemote(ctx, rp, rec)
		})
		if err != nil {
			return fmt.Errorf("failed to merge remote record %s/%s: %w", rec.Type, rec.ID, err)
		}
		merged = true
		if rec.UpdatedAt.After(newest) {
			newest = rec.UpdatedAt
		}
	}

	// The watermark follows server time, not the local clock: the next
	// incremental fetch filters on the server's updated_at, and a skewed
	// local stamp could skip records forever.
	if merged {
		if err := r.store.Meta.SetLastSyncedAt(ctx, r.householdID, newest); err != nil {
			return fmt.Errorf("failed to record sync watermark: %w", err)
		}
	}

	r.mu.Lock()
	r.fullResync = false
	r.mu.Unlock()

	if merged {
		r.notifyData()
	}
	return nil
}

// mergeRemote folds one remote record into the cache:
//
//   - local absent or synced: overwrite with the remote copy, unless the
//     stored serverUpdatedAt is already newer (merges never regress).
//   - local pending: keep the local change; when the remote record is newer
//     than the serverUpdatedAt the local change was based on, mark the
//     entity conflict instead of silently merging.
//   - local conflict: left alone until reviewed.
func (r *Reconciler) mergeRemote(ctx context.Context, rp store.Repositories, rec backend.Record) error {
	local, err := rp.Cache.Get(ctx, rec.Type, rec.ID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}

	if local == nil {
		if rec.Deleted {
			return nil
		}
		return rp.Cache.Put(ctx, remoteToRecord(rec))
	}

	switch local.SyncStatus {
	case models.StatusSynced:
		if local.ServerUpdatedAt != nil && !rec.UpdatedAt.After(*local.ServerUpdatedAt) {
			return nil
		}
		if rec.Deleted {
			return rp.Cache.Delete(ctx, rec.Type, rec.ID)
		}
		return rp.Cache.Put(ctx, remoteToRecord(rec))

	case models.StatusPending:
		base := local.ServerUpdatedAt
		if base == nil || rec.UpdatedAt.After(*base) {
			return rp.Cache.SetStatus(ctx, rec.Type, rec.ID, models.StatusConflict, nil)
		}
		return nil

	case models.StatusConflict:
		return nil

	default:
		return fmt.Errorf("unknown sync status %q", local.SyncStatus)
	}
}

func remoteToRecord(rec backend.Record) *models.Record {
	ts := rec.UpdatedAt
	return &models.Record{
		Type:            rec.Type,
		ID:              rec.ID,
		HouseholdID:     rec.HouseholdID,
		Payload:         rec.Payload,
		SyncStatus:      models.StatusSynced,
		ServerUpdatedAt: &ts,
		Deleted:         rec.Deleted,
	}
}

// StartRealtime subscribes to the household's change channel. Incoming
// events fold through the same merge logic as a pull, one record at a time.
func (r *Reconciler) StartRealtime(ctx context.Context) error {
	r.mu.Lock()
	if r.stopRealtime != nil {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	stop, err := r.remote.Subscribe(ctx, r.householdID, func(rec backend.Record) {
		err := r.store.WithTx(ctx, func(ctx context.Context, rp store.Repositories) error {
			return r.mergeRemote(ctx, rp, rec)
		})
		if err != nil {
			r.log.Error(ctx, "failed to merge realtime change",
				"type", rec.Type, "id", rec.ID, "error", err)
			return
		}
		r.notifyData()
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to household changes: %w", err)
	}

	r.mu.Lock()
	r.stopRealtime = stop
	r.mu.Unlock()
	return nil
}

// StopRealtime tears down the change subscription, if any.
func (r *Reconciler) StopRealtime() {
	r.mu.Lock()
	stop := r.stopRealtime
	r.stopRealtime = nil
	r.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// NeedsAttention reports work requiring user-visible resolution: queue
// entries past the retry bound and cache entities in conflict.
func (r *Reconciler) NeedsAttention(ctx context.Context) (*Attention, error) {
	exhausted, err := r.store.Queue.ListExhausted(ctx, r.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to list exhausted queue entries: %w", err)
	}
	conflicts, err := r.store.Cache.CountByStatus(ctx, models.StatusConflict)
	if err != nil {
		return nil, fmt.Errorf("failed to count conflicts: %w", err)
	}
	return &Attention{Exhausted: exhausted, Conflicts: conflicts}, nil
}

// ForceRetry keeps the local change and puts the entity back on the drain
// path: retry bookkeeping is reset and a conflict status is downgraded to
// pending so the next push overwrites the remote copy.
func (r *Reconciler) ForceRetry(ctx context.Context, t models.EntityType, entityID string) error {
	return r.store.WithTx(ctx, func(ctx context.Context, rp store.Repositories) error {
		entry, err := rp.Queue.GetForEntity(ctx, entityID)
		if err != nil {
			return err
		}
		if err := rp.Queue.ResetAttempts(ctx, entry.ID); err != nil {
			return err
		}

		rec, err := rp.Cache.Get(ctx, t, entityID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil
			}
			return err
		}
		if rec.SyncStatus == models.StatusConflict {
			return rp.Cache.SetStatus(ctx, t, entityID, models.StatusPending, nil)
		}
		return nil
	})
}

// Discard abandons the local change: the queue entry is dropped and the
// entity is handed back to the server. The next pull runs full so the
// authoritative copy is refetched regardless of the watermark.
func (r *Reconciler) Discard(ctx context.Context, t models.EntityType, entityID string) error {
	err := r.store.WithTx(ctx, func(ctx context.Context, rp store.Repositories) error {
		if err := rp.Queue.ClearForEntity(ctx, entityID); err != nil {
			return err
		}

		rec, err := rp.Cache.Get(ctx, t, entityID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil
			}
			return err
		}
		if rec.Deleted {
			// a discarded local delete: drop the tombstone, the pull
			// restores the server copy
			return rp.Cache.Delete(ctx, t, entityID)
		}
		return rp.Cache.SetStatus(ctx, t, entityID, models.StatusSynced, nil)
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.fullResync = true
	r.mu.Unlock()

	r.RefreshPending(ctx)
	return nil
}

// Close cancels the real-time subscription. In-flight syncs finish via
// their own contexts.
func (r *Reconciler) Close() {
	r.StopRealtime()
}
