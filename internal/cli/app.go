package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jmorrow1204/kitchensync/internal/auth"
	"github.com/jmorrow1204/kitchensync/internal/backend"
	"github.com/jmorrow1204/kitchensync/internal/config"
	"github.com/jmorrow1204/kitchensync/internal/logging"
	"github.com/jmorrow1204/kitchensync/internal/session"
	"github.com/jmorrow1204/kitchensync/internal/store"
	enginesync "github.com/jmorrow1204/kitchensync/internal/sync"
)

// App wires the CLI to one household session. Everything user-visible goes
// through out so tests can capture it.
type App struct {
	config  *config.Config
	store   *store.Store
	remote  backend.Client
	session *session.Session
	user    *auth.Session
	out     io.Writer
}

func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	user, err := auth.NewSession(cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}
	if user.Expired(time.Now()) {
		return nil, fmt.Errorf("access token expired, log in again")
	}
	if cfg.HouseholdID == "" {
		return nil, fmt.Errorf("household id is required (-H or KITCHENSYNC_HOUSEHOLD_ID)")
	}

	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	remote := backend.NewHTTPClient(cfg.ServerEndpointAddr, user.Token(), log)

	sess := session.New(session.Options{
		Store:         st,
		Remote:        remote,
		Logger:        log,
		HouseholdID:   cfg.HouseholdID,
		UserID:        user.UserID(),
		ProbeInterval: cfg.OnlineCheckInterval,
		SyncInterval:  cfg.SyncInterval,
	})

	return &App{
		config:  cfg,
		store:   st,
		remote:  remote,
		session: sess,
		user:    user,
		out:     os.Stdout,
	}, nil
}

// Run starts the REPL and blocks until the user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	fmt.Fprintln(a.out, "kitchensync CLI (type 'help' for commands)")

	unsub := a.session.Reconciler.OnSyncStateChange(func(state enginesync.State, pending int) {
		// quiet on the happy path; surface transitions that matter
		if state == enginesync.StateOffline {
			fmt.Fprintln(a.out, "-- offline, changes will sync later")
		}
	})
	defer unsub()

	runREPL(ctx, a, a.statusLine, bufio.NewScanner(os.Stdin), a.out)
}

// Close tears down the session and the stores.
func (a *App) Close() {
	a.session.Close()
	_ = a.remote.Close()
	_ = a.store.Close()
}

// statusLine renders the prompt status: sync state and pending count.
func (a *App) statusLine() string {
	state, pending := a.session.Reconciler.State()
	if pending == 0 {
		return string(state)
	}
	return fmt.Sprintf("%s, %d pending", state, pending)
}
