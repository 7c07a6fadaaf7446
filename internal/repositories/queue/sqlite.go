// Package queue implements the offline operation queue over SQLite.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmorrow1204/kitchensync/internal/common"
	"github.com/jmorrow1204/kitchensync/internal/dbx"
	"github.com/jmorrow1204/kitchensync/internal/models"
)

// SQLiteRepository implements Repository over a DBTX. Bind it to a
// transaction when enqueueing concurrently; the entity_id UNIQUE constraint
// backstops the dedup invariant either way.
type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// collapse folds a new operation into an existing one. keep=false means the
// entry must be removed entirely; op is only meaningful when keep is true.
// changed=false means the existing entry stays as it is.
func collapse(existing, next models.Operation) (op models.Operation, keep, changed bool) {
	switch existing {
	case models.OpAdd:
		if next == models.OpDelete {
			// the entity never reached the server; creation and deletion
			// cancel out
			return "", false, true
		}
		return models.OpAdd, true, false
	case models.OpUpdate:
		if next == models.OpDelete {
			return models.OpDelete, true, true
		}
		return models.OpUpdate, true, false
	case models.OpDelete:
		// already considered removed until dequeued
		return models.OpDelete, true, false
	}
	return next, true, true
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, op models.Operation, t models.EntityType, entityID string) (*models.QueueEntry, error) {
	existing, err := r.GetForEntity(ctx, entityID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	if existing == nil {
		entry := &models.QueueEntry{
			ID:         uuid.NewString(),
			Op:         op,
			EntityType: t,
			EntityID:   entityID,
			EnqueuedAt: r.now().UTC(),
		}
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO offline_queue (id, op, entity_type, entity_id, enqueued_at) VALUES (?, ?, ?, ?, ?)`,
			entry.ID, string(entry.Op), string(entry.EntityType), entry.EntityID, fmtTime(entry.EnqueuedAt))
		if err != nil {
			return nil, fmt.Errorf("failed to enqueue %s %s/%s: %w", op, t, entityID, err)
		}
		return entry, nil
	}

	folded, keep, changed := collapse(existing.Op, op)
	if !keep {
		if err := r.Dequeue(ctx, existing.ID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if changed {
		_, err := r.db.ExecContext(ctx,
			`UPDATE offline_queue SET op = ? WHERE id = ?`, string(folded), existing.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to collapse queue entry %s: %w", existing.ID, err)
		}
		existing.Op = folded
	}
	return existing, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.QueueEntry, error) {
	return r.list(ctx, `SELECT id, op, entity_type, entity_id, enqueued_at, retry_count, last_attempt_at, last_error
		FROM offline_queue ORDER BY enqueued_at, id`)
}

func (r *SQLiteRepository) ListRetryable(ctx context.Context, maxRetries int) ([]models.QueueEntry, error) {
	return r.list(ctx, `SELECT id, op, entity_type, entity_id, enqueued_at, retry_count, last_attempt_at, last_error
		FROM offline_queue WHERE retry_count < ? ORDER BY enqueued_at, id`, maxRetries)
}

func (r *SQLiteRepository) ListExhausted(ctx context.Context, maxRetries int) ([]models.QueueEntry, error) {
	return r.list(ctx, `SELECT id, op, entity_type, entity_id, enqueued_at, retry_count, last_attempt_at, last_error
		FROM offline_queue WHERE retry_count >= ? ORDER BY enqueued_at, id`, maxRetries)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	defer rows.Close()

	var result []models.QueueEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) GetForEntity(ctx context.Context, entityID string) (*models.QueueEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, op, entity_type, entity_id, enqueued_at, retry_count, last_attempt_at, last_error
		FROM offline_queue WHERE entity_id = ?`, entityID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry for entity %s: %w", entityID, err)
	}
	return entry, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count queue entries: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Dequeue(ctx context.Context, entryID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM offline_queue WHERE id = ?`, entryID)
	if err != nil {
		return fmt.Errorf("failed to dequeue entry %s: %w", entryID, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkAttempt(ctx context.Context, entryID string, attemptErr error) error {
	msg := ""
	if attemptErr != nil {
		msg = attemptErr.Error()
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE offline_queue SET retry_count = retry_count + 1, last_attempt_at = ?, last_error = ? WHERE id = ?`,
		fmtTime(r.now().UTC()), msg, entryID)
	if err != nil {
		return fmt.Errorf("failed to mark attempt for entry %s: %w", entryID, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ResetAttempts(ctx context.Context, entryID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE offline_queue SET retry_count = 0, last_attempt_at = NULL, last_error = '' WHERE id = ?`, entryID)
	if err != nil {
		return fmt.Errorf("failed to reset attempts for entry %s: %w", entryID, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ClearForEntity(ctx context.Context, entityID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM offline_queue WHERE entity_id = ?`, entityID)
	if err != nil {
		return fmt.Errorf("failed to clear queue for entity %s: %w", entityID, err)
	}
	return nil
}

func (r *SQLiteRepository) ClearAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM offline_queue`)
	if err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.QueueEntry, error) {
	entry := &models.QueueEntry{}
	var enqueuedAt string
	var lastAttempt sql.NullString
	if err := row.Scan(&entry.ID, &entry.Op, &entry.EntityType, &entry.EntityID,
		&enqueuedAt, &entry.RetryCount, &lastAttempt, &entry.LastError); err != nil {
		return nil, err
	}
	var err error
	if entry.EnqueuedAt, err = parseTime(enqueuedAt); err != nil {
		return nil, fmt.Errorf("bad enqueued_at for entry %s: %w", entry.ID, err)
	}
	if lastAttempt.Valid {
		t, err := parseTime(lastAttempt.String)
		if err != nil {
			return nil, fmt.Errorf("bad last_attempt_at for entry %s: %w", entry.ID, err)
		}
		entry.LastAttemptAt = &t
	}
	return entry, nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
