package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	repo "taskmirror/internal/calsync/repository"
	"taskmirror/internal/model"
)

const recordColumns = `id, user_id, unit_kind, unit_id, event_id, fingerprint, synced_at`

// CreateSyncRecord inserts a new unit-to-event mapping. A conflict on the
// (unit_kind, unit_id) unique index is returned as ErrDuplicateRecord; the
// constraint doubles as the race detector for concurrent triggers.
func (r *implRepository) CreateSyncRecord(ctx context.Context, opt repo.CreateSyncRecordOptions) (model.SyncRecord, error) {
	rec := model.SyncRecord{
		ID:          uuid.NewString(),
		UserID:      opt.UserID,
		UnitKind:    opt.Ref.Kind,
		UnitID:      opt.Ref.ID,
		EventID:     opt.EventID,
		Fingerprint: opt.Fingerprint,
		SyncedAt:    time.Now().UTC(),
	}

	const query = `
		INSERT INTO sync_records (id, user_id, unit_kind, unit_id, event_id, fingerprint, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, string(rec.UnitKind), rec.UnitID, rec.EventID, rec.Fingerprint, fmtTime(rec.SyncedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.SyncRecord{}, repo.ErrDuplicateRecord
		}
		r.l.Errorf(ctx, "%s: %v", r.dsn("CreateSyncRecord"), err)
		return model.SyncRecord{}, repo.ErrFailedToInsert
	}
	return rec, nil
}

// GetSyncRecord returns the record for a unit, or a zero-value record when
// none exists.
func (r *implRepository) GetSyncRecord(ctx context.Context, ref model.UnitRef) (model.SyncRecord, error) {
	const query = `SELECT ` + recordColumns + ` FROM sync_records WHERE unit_kind = ? AND unit_id = ? LIMIT 1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, string(ref.Kind), ref.ID))
	if err == sql.ErrNoRows {
		return model.SyncRecord{}, nil
	}
	if err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("GetSyncRecord"), err)
		return model.SyncRecord{}, repo.ErrFailedToGet
	}
	return rec, nil
}

// ListSyncRecords returns every record of a user.
func (r *implRepository) ListSyncRecords(ctx context.Context, userID string) ([]model.SyncRecord, error) {
	const query = `SELECT ` + recordColumns + ` FROM sync_records WHERE user_id = ? ORDER BY synced_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("ListSyncRecords"), err)
		return nil, repo.ErrFailedToList
	}
	defer rows.Close()

	var records []model.SyncRecord
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, repo.ErrFailedToList
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateSyncRecord stores a new event id and fingerprint for a unit.
func (r *implRepository) UpdateSyncRecord(ctx context.Context, opt repo.UpdateSyncRecordOptions) error {
	const query = `
		UPDATE sync_records SET event_id = ?, fingerprint = ?, synced_at = ?
		WHERE unit_kind = ? AND unit_id = ?`
	_, err := r.db.ExecContext(ctx, query,
		opt.EventID, opt.Fingerprint, fmtTime(time.Now().UTC()), string(opt.Ref.Kind), opt.Ref.ID,
	)
	if err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("UpdateSyncRecord"), err)
		return repo.ErrFailedToUpdate
	}
	return nil
}

// DeleteSyncRecord removes the record for a unit.
func (r *implRepository) DeleteSyncRecord(ctx context.Context, ref model.UnitRef) error {
	const query = `DELETE FROM sync_records WHERE unit_kind = ? AND unit_id = ?`
	if _, err := r.db.ExecContext(ctx, query, string(ref.Kind), ref.ID); err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("DeleteSyncRecord"), err)
		return repo.ErrFailedToDelete
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (model.SyncRecord, error) {
	var (
		rec      model.SyncRecord
		kind     string
		syncedAt string
	)
	err := row.Scan(&rec.ID, &rec.UserID, &kind, &rec.UnitID, &rec.EventID, &rec.Fingerprint, &syncedAt)
	if err != nil {
		return model.SyncRecord{}, err
	}
	rec.UnitKind = model.UnitKind(kind)
	rec.SyncedAt = parseTime(syncedAt)
	return rec, nil
}
