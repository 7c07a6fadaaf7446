// Package session wires one household's engine together: the reconciler,
// the lock manager and the services, constructed on household switch and
// torn down on switch-away. Nothing here is a process-wide singleton: two
// sessions never share mutable state beyond the store they are given.
package session

import (
	"context"
	"time"

	"github.com/jmorrow1204/kitchensync/internal/backend"
	"github.com/jmorrow1204/kitchensync/internal/locks"
	"github.com/jmorrow1204/kitchensync/internal/logging"
	"github.com/jmorrow1204/kitchensync/internal/services"
	"github.com/jmorrow1204/kitchensync/internal/store"
	enginesync "github.com/jmorrow1204/kitchensync/internal/sync"
)

// Session is the running engine for one (user, household) pair.
type Session struct {
	HouseholdID string
	UserID      string

	Reconciler *enginesync.Reconciler
	Locks      *locks.Manager
	Meals      services.MealService
	Household  services.HouseholdService
	Proposals  services.ProposalService

	cancel context.CancelFunc
	done   chan struct{}
}

// Options carries the collaborators a session builds on.
type Options struct {
	Store       *store.Store
	Remote      backend.Client
	Logger      logging.Logger
	HouseholdID string
	UserID      string

	// ProbeInterval and SyncInterval drive the background loop; zero
	// values disable it (useful in tests and one-shot commands).
	ProbeInterval time.Duration
	SyncInterval  time.Duration
}

// New constructs and starts a session. The lock manager routes through the
// backend while online and through the cache while offline, so lock
// semantics do not change with connectivity.
func New(opts Options) *Session {
	rec := enginesync.NewReconciler(opts.Store, opts.Remote, opts.HouseholdID, opts.Logger)

	lockStore := &locks.SwitchStore{
		Remote: locks.NewBackendStore(opts.Remote),
		Local:  locks.NewCacheStore(opts.Store),
		Online: rec.Online,
	}
	lm := locks.NewManager(lockStore)

	s := &Session{
		HouseholdID: opts.HouseholdID,
		UserID:      opts.UserID,
		Reconciler:  rec,
		Locks:       lm,
		Meals:       services.NewMealService(opts.Store, lm, rec, opts.HouseholdID, opts.UserID),
		Household:   services.NewHouseholdService(opts.Store, rec, opts.HouseholdID),
		Proposals:   services.NewProposalService(opts.Store, rec, opts.HouseholdID, opts.UserID),
		done:        make(chan struct{}),
	}

	if opts.ProbeInterval > 0 && opts.SyncInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go func() {
			defer close(s.done)
			rec.Run(ctx, opts.ProbeInterval, opts.SyncInterval)
		}()
	} else {
		close(s.done)
	}

	return s
}

// Close tears the session down: the background loop stops, the real-time
// subscription is cancelled and in-flight syncs wind down. The store and
// the backend client are owned by the caller and stay open.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
	s.Reconciler.Close()
}
