// Package cache implements the local cache store: the device's durable copy
// of every entity together with its sync metadata.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmorrow1204/kitchensync/internal/common"
	"github.com/jmorrow1204/kitchensync/internal/dbx"
	"github.com/jmorrow1204/kitchensync/internal/models"
)

// SQLiteRepository implements Repository over a DBTX (either *sql.DB or
// *sql.Tx), so the same code runs standalone or inside a transaction.
type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

// NewSQLiteRepository returns a repository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, t models.EntityType, id string) (*models.Record, error) {
	query := `SELECT household_id, payload, sync_status, local_updated_at, server_updated_at, deleted
		FROM records WHERE type = ? AND id = ?`
	row := r.db.QueryRowContext(ctx, query, string(t), id)

	rec := &models.Record{Type: t, ID: id}
	var localAt string
	var serverAt sql.NullString
	err := row.Scan(&rec.HouseholdID, &rec.Payload, &rec.SyncStatus, &localAt, &serverAt, &rec.Deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s/%s: %w", t, id, err)
	}
	if rec.LocalUpdatedAt, err = parseTime(localAt); err != nil {
		return nil, fmt.Errorf("bad local_updated_at for %s/%s: %w", t, id, err)
	}
	if rec.ServerUpdatedAt, err = parseTimePtr(serverAt); err != nil {
		return nil, fmt.Errorf("bad server_updated_at for %s/%s: %w", t, id, err)
	}
	return rec, nil
}

// Put upserts the record and stamps LocalUpdatedAt with the current time.
func (r *SQLiteRepository) Put(ctx context.Context, rec *models.Record) error {
	rec.LocalUpdatedAt = r.now().UTC()
	query := `INSERT INTO records (type, id, household_id, payload, sync_status, local_updated_at, server_updated_at, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(type, id) DO UPDATE SET
			household_id = excluded.household_id,
			payload = excluded.payload,
			sync_status = excluded.sync_status,
			local_updated_at = excluded.local_updated_at,
			server_updated_at = excluded.server_updated_at,
			deleted = excluded.deleted`
	_, err := r.db.ExecContext(ctx, query,
		string(rec.Type), rec.ID, rec.HouseholdID, []byte(rec.Payload), string(rec.SyncStatus),
		fmtTime(rec.LocalUpdatedAt), fmtTimePtr(rec.ServerUpdatedAt), rec.Deleted)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s/%s: %w", rec.Type, rec.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, t models.EntityType, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE type = ? AND id = ?`, string(t), id)
	if err != nil {
		return fmt.Errorf("failed to delete record %s/%s: %w", t, id, err)
	}
	return nil
}

func (r *SQLiteRepository) QueryByHousehold(ctx context.Context, t models.EntityType, householdID string) ([]models.Record, error) {
	query := `SELECT id, household_id, payload, sync_status, local_updated_at, server_updated_at, deleted
		FROM records WHERE type = ? AND household_id = ? AND deleted = 0 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, string(t), householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s records: %w", t, err)
	}
	defer rows.Close()
	return scanRecords(rows, t)
}

func (r *SQLiteRepository) QueryPending(ctx context.Context, t models.EntityType) ([]models.Record, error) {
	query := `SELECT id, household_id, payload, sync_status, local_updated_at, server_updated_at, deleted
		FROM records WHERE type = ? AND sync_status = ?`
	rows, err := r.db.QueryContext(ctx, query, string(t), string(models.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending %s records: %w", t, err)
	}
	defer rows.Close()
	return scanRecords(rows, t)
}

func (r *SQLiteRepository) SetStatus(ctx context.Context, t models.EntityType, id string, status models.SyncStatus, serverUpdatedAt *time.Time) error {
	var res sql.Result
	var err error
	if serverUpdatedAt != nil {
		res, err = r.db.ExecContext(ctx,
			`UPDATE records SET sync_status = ?, server_updated_at = ? WHERE type = ? AND id = ?`,
			string(status), fmtTime(*serverUpdatedAt), string(t), id)
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE records SET sync_status = ? WHERE type = ? AND id = ?`,
			string(status), string(t), id)
	}
	if err != nil {
		return fmt.Errorf("failed to set status for %s/%s: %w", t, id, err)
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

func (r *SQLiteRepository) CountByStatus(ctx context.Context, status models.SyncStatus) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE sync_status = ?`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

func scanRecords(rows *sql.Rows, t models.EntityType) ([]models.Record, error) {
	var result []models.Record
	for rows.Next() {
		rec := models.Record{Type: t}
		var localAt string
		var serverAt sql.NullString
		if err := rows.Scan(&rec.ID, &rec.HouseholdID, &rec.Payload, &rec.SyncStatus, &localAt, &serverAt, &rec.Deleted); err != nil {
			return nil, err
		}
		var err error
		if rec.LocalUpdatedAt, err = parseTime(localAt); err != nil {
			return nil, fmt.Errorf("bad local_updated_at for %s/%s: %w", t, rec.ID, err)
		}
		if rec.ServerUpdatedAt, err = parseTimePtr(serverAt); err != nil {
			return nil, fmt.Errorf("bad server_updated_at for %s/%s: %w", t, rec.ID, err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
