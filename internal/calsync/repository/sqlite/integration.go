package sqlite

import (
	"context"
	"database/sql"
	"time"

	repo "taskmirror/internal/calsync/repository"
	"taskmirror/internal/model"
)

const integrationColumns = `user_id, calendar_id, sync_enabled, disabled_reason, access_token, refresh_token, token_expiry, lock_owner, lock_acquired_at, created_at, updated_at`

// GetIntegration returns a user's integration row, or a zero-value
// integration (UserID == "") when none exists.
func (r *implRepository) GetIntegration(ctx context.Context, userID string) (model.CalendarIntegration, error) {
	const query = `SELECT ` + integrationColumns + ` FROM calendar_integrations WHERE user_id = ? LIMIT 1`

	ci, err := scanIntegration(r.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return model.CalendarIntegration{}, nil
	}
	if err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("GetIntegration"), err)
		return model.CalendarIntegration{}, repo.ErrFailedToGet
	}
	return ci, nil
}

// UpsertIntegration creates or replaces a user's integration. Re-enabling
// clears any previous disabled reason and lease.
func (r *implRepository) UpsertIntegration(ctx context.Context, opt repo.UpsertIntegrationOptions) error {
	now := fmtTime(time.Now().UTC())
	calendarID := opt.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	const query = `
		INSERT INTO calendar_integrations
			(user_id, calendar_id, sync_enabled, disabled_reason, access_token, refresh_token, token_expiry, lock_owner, lock_acquired_at, created_at, updated_at)
		VALUES (?, ?, ?, '', ?, ?, ?, '', NULL, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			calendar_id = excluded.calendar_id,
			sync_enabled = excluded.sync_enabled,
			disabled_reason = '',
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expiry = excluded.token_expiry,
			lock_owner = '',
			lock_acquired_at = NULL,
			updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		opt.UserID, calendarID, boolToInt(opt.SyncEnabled),
		opt.AccessToken, opt.RefreshToken, fmtTime(opt.TokenExpiry), now, now,
	)
	if err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("UpsertIntegration"), err)
		return repo.ErrFailedToInsert
	}
	return nil
}

// ListSyncEnabledUserIDs returns users whose integration is enabled.
func (r *implRepository) ListSyncEnabledUserIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT user_id FROM calendar_integrations WHERE sync_enabled = 1 ORDER BY user_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("ListSyncEnabledUserIDs"), err)
		return nil, repo.ErrFailedToList
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, repo.ErrFailedToList
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// DisableIntegration turns sync off and records why. The reason is shown on
// the next settings read, never mid-sync.
func (r *implRepository) DisableIntegration(ctx context.Context, userID, reason string) error {
	const query = `
		UPDATE calendar_integrations
		SET sync_enabled = 0, disabled_reason = ?, updated_at = ?
		WHERE user_id = ?`
	if _, err := r.db.ExecContext(ctx, query, reason, fmtTime(time.Now().UTC()), userID); err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("DisableIntegration"), err)
		return repo.ErrFailedToUpdate
	}
	return nil
}

// AcquireRefreshLock performs a non-blocking compare-and-swap on the lease
// columns. Succeeds when the lock is free, already ours, or stale.
func (r *implRepository) AcquireRefreshLock(ctx context.Context, userID, owner string, staleBefore time.Time) (bool, error) {
	const query = `
		UPDATE calendar_integrations
		SET lock_owner = ?, lock_acquired_at = ?
		WHERE user_id = ?
		  AND (lock_owner = '' OR lock_owner = ? OR lock_acquired_at < ?)`
	res, err := r.db.ExecContext(ctx, query,
		owner, fmtTime(time.Now().UTC()), userID, owner, fmtTime(staleBefore),
	)
	if err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("AcquireRefreshLock"), err)
		return false, repo.ErrFailedToUpdate
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// ReleaseRefreshLock clears the lease if the owner still holds it.
func (r *implRepository) ReleaseRefreshLock(ctx context.Context, userID, owner string) error {
	const query = `
		UPDATE calendar_integrations
		SET lock_owner = '', lock_acquired_at = NULL
		WHERE user_id = ? AND lock_owner = ?`
	if _, err := r.db.ExecContext(ctx, query, userID, owner); err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("ReleaseRefreshLock"), err)
		return repo.ErrFailedToUpdate
	}
	return nil
}

// SaveToken persists a refreshed credential.
func (r *implRepository) SaveToken(ctx context.Context, opt repo.SaveTokenOptions) error {
	const query = `
		UPDATE calendar_integrations
		SET access_token = ?, refresh_token = ?, token_expiry = ?, updated_at = ?
		WHERE user_id = ?`
	_, err := r.db.ExecContext(ctx, query,
		opt.AccessToken, opt.RefreshToken, fmtTime(opt.TokenExpiry), fmtTime(time.Now().UTC()), opt.UserID,
	)
	if err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("SaveToken"), err)
		return repo.ErrFailedToUpdate
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanIntegration(row rowScanner) (model.CalendarIntegration, error) {
	var (
		ci             model.CalendarIntegration
		syncEnabled    int
		tokenExpiry    sql.NullString
		lockAcquiredAt sql.NullString
		createdAt      string
		updatedAt      string
	)
	err := row.Scan(
		&ci.UserID, &ci.CalendarID, &syncEnabled, &ci.DisabledReason,
		&ci.AccessToken, &ci.RefreshToken, &tokenExpiry,
		&ci.LockOwner, &lockAcquiredAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return model.CalendarIntegration{}, err
	}
	ci.SyncEnabled = syncEnabled == 1
	if tokenExpiry.Valid {
		ci.TokenExpiry = parseTime(tokenExpiry.String)
	}
	if lockAcquiredAt.Valid && lockAcquiredAt.String != "" {
		t := parseTime(lockAcquiredAt.String)
		ci.LockAcquiredAt = &t
	}
	ci.CreatedAt = parseTime(createdAt)
	ci.UpdatedAt = parseTime(updatedAt)
	return ci, nil
}
