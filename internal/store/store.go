// Package store opens the local SQLite database, applies embedded migrations
// and bundles the repositories working over it.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/jmorrow1204/kitchensync/internal/dbx"
	"github.com/jmorrow1204/kitchensync/internal/migrations"
	"github.com/jmorrow1204/kitchensync/internal/repositories/cache"
	"github.com/jmorrow1204/kitchensync/internal/repositories/queue"
	"github.com/jmorrow1204/kitchensync/internal/repositories/syncmeta"
)

// Repositories groups the data-access objects bound to one DBTX. A value
// produced by WithTx is bound to the transaction.
type Repositories struct {
	Cache cache.Repository
	Queue queue.Repository
	Meta  syncmeta.Repository
}

func newRepositories(db dbx.DBTX) Repositories {
	return Repositories{
		Cache: cache.NewSQLiteRepository(db),
		Queue: queue.NewSQLiteRepository(db),
		Meta:  syncmeta.NewSQLiteRepository(db),
	}
}

// Store owns the device-local database. The cache and the offline queue are
// the only process-wide mutable state of the engine, and both live here.
type Store struct {
	DB *sql.DB
	Repositories
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the SQLite database at dsn and applies
// migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY between the reconciler and caller writes
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{DB: db, Repositories: newRepositories(db)}, nil
}

// WithTx runs fn with repositories bound to a single transaction. Queue
// collapses and push acknowledgments use this so the cache and the queue can
// never silently disagree about pending work.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	return dbx.WithTx(ctx, s.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, newRepositories(tx))
	})
}

func (s *Store) Close() error {
	return s.DB.Close()
}
