package sqlite

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"taskmirror/internal/model"
	repo "taskmirror/internal/task/repository"
)

// ListSchedulableUnits returns the calendar-facing view for a date range:
// non-recurring, non-archived tasks scheduled in range plus instances whose
// parent task is not archived. The archived-parent filter is the critical
// correctness property of this read path.
func (r *implRepository) ListSchedulableUnits(ctx context.Context, opt repo.ListUnitsOptions) ([]model.SchedulableUnit, error) {
	var units []model.SchedulableUnit

	const taskQuery = `
		SELECT id, user_id, title, notes, scheduled_on, default_time, status, created_at
		FROM tasks
		WHERE user_id = ?
		  AND recurrence IS NULL
		  AND status != 'archived'
		  AND scheduled_on IS NOT NULL
		  AND scheduled_on >= ? AND scheduled_on <= ?`
	rows, err := r.db.QueryContext(ctx, taskQuery, opt.UserID, fmtDate(opt.From), fmtDate(opt.To))
	if err != nil {
		r.l.Errorf(ctx, "%s: tasks: %v", r.dsn("ListSchedulableUnits"), err)
		return nil, repo.ErrFailedToList
	}
	defer rows.Close()

	for rows.Next() {
		u, scanErr := r.scanTaskUnit(rows)
		if scanErr != nil {
			return nil, repo.ErrFailedToList
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, repo.ErrFailedToList
	}

	const instQuery = `
		SELECT i.id, t.user_id, t.title, t.notes, i.occurrence_date, i.scheduled_at, i.status, i.created_at
		FROM task_instances i
		JOIN tasks t ON t.id = i.task_id
		WHERE t.user_id = ?
		  AND t.status != 'archived'
		  AND i.occurrence_date >= ? AND i.occurrence_date <= ?`
	irows, err := r.db.QueryContext(ctx, instQuery, opt.UserID, fmtDate(opt.From), fmtDate(opt.To))
	if err != nil {
		r.l.Errorf(ctx, "%s: instances: %v", r.dsn("ListSchedulableUnits"), err)
		return nil, repo.ErrFailedToList
	}
	defer irows.Close()

	for irows.Next() {
		u, scanErr := scanInstanceUnit(irows)
		if scanErr != nil {
			return nil, repo.ErrFailedToList
		}
		units = append(units, u)
	}
	if err := irows.Err(); err != nil {
		return nil, repo.ErrFailedToList
	}

	sort.Slice(units, func(i, j int) bool {
		if !units[i].Date.Equal(units[j].Date) {
			return units[i].Date.Before(units[j].Date)
		}
		return units[i].Ref.ID < units[j].Ref.ID
	})
	return units, nil
}

// GetUnit resolves one unit reference. Returns a zero-value unit when the
// underlying row no longer exists or its parent is archived.
func (r *implRepository) GetUnit(ctx context.Context, ref model.UnitRef) (model.SchedulableUnit, error) {
	switch ref.Kind {
	case model.UnitKindTask:
		const query = `
			SELECT id, user_id, title, notes, scheduled_on, default_time, status, created_at
			FROM tasks
			WHERE id = ? AND recurrence IS NULL AND status != 'archived'`
		u, err := r.scanTaskUnit(r.db.QueryRowContext(ctx, query, ref.ID))
		if err == sql.ErrNoRows {
			return model.SchedulableUnit{}, nil
		}
		if err != nil {
			r.l.Errorf(ctx, "%s: %v", r.dsn("GetUnit"), err)
			return model.SchedulableUnit{}, repo.ErrFailedToGet
		}
		return u, nil

	case model.UnitKindInstance:
		const query = `
			SELECT i.id, t.user_id, t.title, t.notes, i.occurrence_date, i.scheduled_at, i.status, i.created_at
			FROM task_instances i
			JOIN tasks t ON t.id = i.task_id
			WHERE i.id = ? AND t.status != 'archived'`
		u, err := scanInstanceUnit(r.db.QueryRowContext(ctx, query, ref.ID))
		if err == sql.ErrNoRows {
			return model.SchedulableUnit{}, nil
		}
		if err != nil {
			r.l.Errorf(ctx, "%s: %v", r.dsn("GetUnit"), err)
			return model.SchedulableUnit{}, repo.ErrFailedToGet
		}
		return u, nil
	}
	return model.SchedulableUnit{}, repo.ErrFailedToGet
}

// ListUnitsCreatedSince returns refs of units created at or after since.
// The reconciliation sweep consults this before deleting anything as an
// orphan so a unit created mid-sweep is never misclassified.
func (r *implRepository) ListUnitsCreatedSince(ctx context.Context, userID string, since time.Time) ([]model.UnitRef, error) {
	var refs []model.UnitRef

	const taskQuery = `
		SELECT id FROM tasks
		WHERE user_id = ? AND recurrence IS NULL AND created_at >= ?`
	rows, err := r.db.QueryContext(ctx, taskQuery, userID, fmtTime(since.UTC()))
	if err != nil {
		r.l.Errorf(ctx, "%s: tasks: %v", r.dsn("ListUnitsCreatedSince"), err)
		return nil, repo.ErrFailedToList
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, repo.ErrFailedToList
		}
		refs = append(refs, model.UnitRef{Kind: model.UnitKindTask, ID: id})
	}
	if err := rows.Err(); err != nil {
		return nil, repo.ErrFailedToList
	}

	const instQuery = `
		SELECT i.id FROM task_instances i
		JOIN tasks t ON t.id = i.task_id
		WHERE t.user_id = ? AND i.created_at >= ?`
	irows, err := r.db.QueryContext(ctx, instQuery, userID, fmtTime(since.UTC()))
	if err != nil {
		r.l.Errorf(ctx, "%s: instances: %v", r.dsn("ListUnitsCreatedSince"), err)
		return nil, repo.ErrFailedToList
	}
	defer irows.Close()
	for irows.Next() {
		var id string
		if err := irows.Scan(&id); err != nil {
			return nil, repo.ErrFailedToList
		}
		refs = append(refs, model.UnitRef{Kind: model.UnitKindInstance, ID: id})
	}
	return refs, irows.Err()
}

func (r *implRepository) scanTaskUnit(row rowScanner) (model.SchedulableUnit, error) {
	var (
		u           model.SchedulableUnit
		scheduledOn sql.NullString
		defaultTime string
		createdAt   string
	)
	var id string
	err := row.Scan(&id, &u.UserID, &u.Title, &u.Notes, &scheduledOn, &defaultTime, &u.Status, &createdAt)
	if err != nil {
		return model.SchedulableUnit{}, err
	}
	u.Ref = model.UnitRef{Kind: model.UnitKindTask, ID: id}
	if scheduledOn.Valid {
		u.Date = parseDate(scheduledOn.String)
	}
	if defaultTime != "" && !u.Date.IsZero() {
		if tod, perr := time.Parse("15:04", defaultTime); perr == nil {
			at := time.Date(u.Date.Year(), u.Date.Month(), u.Date.Day(), tod.Hour(), tod.Minute(), 0, 0, r.loc)
			u.ScheduledAt = &at
		}
	}
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

func scanInstanceUnit(row rowScanner) (model.SchedulableUnit, error) {
	var (
		u           model.SchedulableUnit
		occurrence  string
		scheduledAt sql.NullString
		createdAt   string
	)
	var id string
	err := row.Scan(&id, &u.UserID, &u.Title, &u.Notes, &occurrence, &scheduledAt, &u.Status, &createdAt)
	if err != nil {
		return model.SchedulableUnit{}, err
	}
	u.Ref = model.UnitRef{Kind: model.UnitKindInstance, ID: id}
	u.Date = parseDate(occurrence)
	u.ScheduledAt = parseNullableTime(scheduledAt)
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}
