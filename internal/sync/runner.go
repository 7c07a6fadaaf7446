package sync

import (
	"context"
	"errors"
	"time"

	"github.com/jmorrow1204/kitchensync/internal/common"
)

// Run drives the reconciler until ctx is cancelled: connectivity is probed
// every probeEvery, a full pass runs every syncEvery while online, and the
// real-time subscription follows the connectivity transitions. Run blocks;
// call it from its own goroutine.
func (r *Reconciler) Run(ctx context.Context, probeEvery, syncEvery time.Duration) {
	probe := time.NewTicker(probeEvery)
	defer probe.Stop()
	tick := time.NewTicker(syncEvery)
	defer tick.Stop()

	r.probe(ctx)

	for {
		select {
		case <-ctx.Done():
			r.StopRealtime()
			return
		case <-probe.C:
			r.probe(ctx)
		case <-tick.C:
			if !r.Online() {
				continue
			}
			if err := r.SyncNow(ctx); err != nil && !errors.Is(err, common.ErrSyncInProgress) {
				r.log.Warn(ctx, "periodic sync failed", "error", err)
			}
		}
	}
}

// probe pings the backend and reacts to connectivity transitions: coming
// online starts the real-time subscription and drains immediately, going
// offline tears the subscription down.
func (r *Reconciler) probe(ctx context.Context) {
	was := r.Online()
	online := r.remote.Ping(ctx) == nil
	r.SetOnline(online)

	switch {
	case online && !was:
		if err := r.StartRealtime(ctx); err != nil {
			r.log.Warn(ctx, "failed to start realtime subscription", "error", err)
		}
		if err := r.SyncNow(ctx); err != nil && !errors.Is(err, common.ErrSyncInProgress) {
			r.log.Warn(ctx, "reconnect sync failed", "error", err)
		}
	case !online && was:
		r.StopRealtime()
	}
}
