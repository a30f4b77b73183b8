package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskmirror/internal/model"
	repo "taskmirror/internal/task/repository"
)

const instanceColumns = `id, task_id, occurrence_date, scheduled_at, status, completed_at, created_at`

// InsertInstances inserts occurrence rows in one transaction, one savepoint
// per row. A (task_id, occurrence_date) conflict rolls back only the
// offending insert; the existing row is treated as authoritative and the
// rest of the batch proceeds. Returns the number of rows inserted.
func (r *implRepository) InsertInstances(ctx context.Context, opts []repo.InsertInstanceOptions) (int, error) {
	if len(opts) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.l.Errorf(ctx, "%s: begin: %v", r.dsn("InsertInstances"), err)
		return 0, repo.ErrFailedToInsert
	}
	defer tx.Rollback()

	const insert = `
		INSERT INTO task_instances (id, task_id, occurrence_date, scheduled_at, status, completed_at, created_at)
		VALUES (?, ?, ?, ?, 'pending', NULL, ?)`

	now := fmtTime(time.Now().UTC())
	inserted := 0
	for i, o := range opts {
		sp := fmt.Sprintf("insert_instance_%d", i)
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
			r.l.Errorf(ctx, "%s: savepoint: %v", r.dsn("InsertInstances"), err)
			return 0, repo.ErrFailedToInsert
		}

		_, err := tx.ExecContext(ctx, insert,
			uuid.NewString(), o.TaskID, fmtDate(o.OccurrenceDate), fmtNullableTime(o.ScheduledAt), now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				// Concurrent materialization won the race for this date.
				if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO "+sp); rbErr != nil {
					r.l.Errorf(ctx, "%s: rollback to savepoint: %v", r.dsn("InsertInstances"), rbErr)
					return 0, repo.ErrFailedToInsert
				}
				_, _ = tx.ExecContext(ctx, "RELEASE "+sp)
				continue
			}
			r.l.Errorf(ctx, "%s: %v", r.dsn("InsertInstances"), err)
			return 0, repo.ErrFailedToInsert
		}

		if _, err := tx.ExecContext(ctx, "RELEASE "+sp); err != nil {
			r.l.Errorf(ctx, "%s: release savepoint: %v", r.dsn("InsertInstances"), err)
			return 0, repo.ErrFailedToInsert
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		r.l.Errorf(ctx, "%s: commit: %v", r.dsn("InsertInstances"), err)
		return 0, repo.ErrFailedToInsert
	}
	return inserted, nil
}

// GetOneInstance retrieves a single instance by the provided filters (AND).
// Returns a zero-value instance (ID == "") when not found.
func (r *implRepository) GetOneInstance(ctx context.Context, opt repo.GetOneInstanceOptions) (model.TaskInstance, error) {
	conds := []string{"1=1"}
	var args []any
	if opt.ID != "" {
		conds = append(conds, "i.id = ?")
		args = append(args, opt.ID)
	}
	if opt.TaskID != "" {
		conds = append(conds, "i.task_id = ?")
		args = append(args, opt.TaskID)
	}
	join := ""
	if opt.UserID != "" {
		join = "JOIN tasks t ON t.id = i.task_id"
		conds = append(conds, "t.user_id = ?")
		args = append(args, opt.UserID)
	}

	query := fmt.Sprintf(
		"SELECT i.id, i.task_id, i.occurrence_date, i.scheduled_at, i.status, i.completed_at, i.created_at FROM task_instances i %s WHERE %s LIMIT 1",
		join, strings.Join(conds, " AND "),
	)
	inst, err := scanInstance(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return model.TaskInstance{}, nil
	}
	if err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("GetOneInstance"), err)
		return model.TaskInstance{}, repo.ErrFailedToGet
	}
	return inst, nil
}

// ListInstances returns instances matching the filters, ordered by date.
func (r *implRepository) ListInstances(ctx context.Context, opt repo.ListInstancesOptions) ([]model.TaskInstance, error) {
	conds := []string{"1=1"}
	var args []any
	if opt.TaskID != "" {
		conds = append(conds, "task_id = ?")
		args = append(args, opt.TaskID)
	}
	if opt.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(opt.Status))
	}
	if !opt.From.IsZero() {
		conds = append(conds, "occurrence_date >= ?")
		args = append(args, fmtDate(opt.From))
	}
	if !opt.To.IsZero() {
		conds = append(conds, "occurrence_date <= ?")
		args = append(args, fmtDate(opt.To))
	}

	query := fmt.Sprintf(
		"SELECT %s FROM task_instances WHERE %s ORDER BY occurrence_date",
		instanceColumns, strings.Join(conds, " AND "),
	)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("ListInstances"), err)
		return nil, repo.ErrFailedToList
	}
	defer rows.Close()

	var out []model.TaskInstance
	for rows.Next() {
		inst, scanErr := scanInstance(rows)
		if scanErr != nil {
			return nil, repo.ErrFailedToList
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// UpdateInstanceStatus marks an instance completed or skipped and returns
// the updated row.
func (r *implRepository) UpdateInstanceStatus(ctx context.Context, opt repo.UpdateInstanceStatusOptions) (model.TaskInstance, error) {
	const query = `UPDATE task_instances SET status = ?, completed_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, string(opt.Status), fmtNullableTime(opt.CompletedAt), opt.ID); err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("UpdateInstanceStatus"), err)
		return model.TaskInstance{}, repo.ErrFailedToUpdate
	}
	return r.GetOneInstance(ctx, repo.GetOneInstanceOptions{ID: opt.ID})
}

// DeleteFuturePendingInstances removes pending instances dated on or after
// from. Completed and skipped history is preserved.
func (r *implRepository) DeleteFuturePendingInstances(ctx context.Context, taskID string, from time.Time) (int64, error) {
	const query = `
		DELETE FROM task_instances
		WHERE task_id = ? AND status = 'pending' AND occurrence_date >= ?`
	res, err := r.db.ExecContext(ctx, query, taskID, fmtDate(from))
	if err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("DeleteFuturePendingInstances"), err)
		return 0, repo.ErrFailedToDelete
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteStaleInstances removes completed/skipped instances older than
// before. Pending rows are untouched regardless of age.
func (r *implRepository) DeleteStaleInstances(ctx context.Context, userID string, before time.Time) (int64, error) {
	const query = `
		DELETE FROM task_instances
		WHERE status != 'pending'
		  AND occurrence_date < ?
		  AND task_id IN (SELECT id FROM tasks WHERE user_id = ?)`
	res, err := r.db.ExecContext(ctx, query, fmtDate(before), userID)
	if err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("DeleteStaleInstances"), err)
		return 0, repo.ErrFailedToDelete
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteInstancesByTask removes all instances of a task.
func (r *implRepository) DeleteInstancesByTask(ctx context.Context, taskID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM task_instances WHERE task_id = ?`, taskID)
	if err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("DeleteInstancesByTask"), err)
		return 0, repo.ErrFailedToDelete
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanInstance(row rowScanner) (model.TaskInstance, error) {
	var (
		inst        model.TaskInstance
		occurrence  string
		scheduledAt sql.NullString
		status      string
		completedAt sql.NullString
		createdAt   string
	)
	err := row.Scan(&inst.ID, &inst.TaskID, &occurrence, &scheduledAt, &status, &completedAt, &createdAt)
	if err != nil {
		return model.TaskInstance{}, err
	}
	inst.OccurrenceDate = parseDate(occurrence)
	inst.ScheduledAt = parseNullableTime(scheduledAt)
	inst.Status = model.InstanceStatus(status)
	inst.CompletedAt = parseNullableTime(completedAt)
	inst.CreatedAt = parseTime(createdAt)
	return inst, nil
}
