package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskmirror/internal/model"
	repo "taskmirror/internal/task/repository"
)

const taskColumns = `id, user_id, title, notes, scheduled_on, default_time, status, recurrence, start_date, created_at, updated_at`

// CreateTask inserts a new task row and returns the created entity.
func (r *implRepository) CreateTask(ctx context.Context, opt repo.CreateTaskOptions) (model.Task, error) {
	var recurrence sql.NullString
	if opt.Recurrence != nil {
		raw, err := json.Marshal(opt.Recurrence)
		if err != nil {
			r.l.Errorf(ctx, "%s: marshal rule: %v", r.dsn("CreateTask"), err)
			return model.Task{}, repo.ErrFailedToInsert
		}
		recurrence = sql.NullString{String: string(raw), Valid: true}
	}

	now := time.Now().UTC()
	t := model.Task{
		ID:          uuid.NewString(),
		UserID:      opt.UserID,
		Title:       opt.Title,
		Notes:       opt.Notes,
		ScheduledOn: opt.ScheduledOn,
		DefaultTime: opt.DefaultTime,
		Status:      model.TaskStatusPending,
		Recurrence:  opt.Recurrence,
		StartDate:   opt.StartDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	const query = `
		INSERT INTO tasks (id, user_id, title, notes, scheduled_on, default_time, status, recurrence, start_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.UserID, t.Title, t.Notes,
		fmtNullableDate(t.ScheduledOn), t.DefaultTime, string(t.Status),
		recurrence, fmtNullableDate(t.StartDate), fmtTime(now), fmtTime(now),
	)
	if err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("CreateTask"), err)
		return model.Task{}, repo.ErrFailedToInsert
	}
	return t, nil
}

// GetOneTask retrieves a single task by the provided filters (AND).
// Returns a zero-value Task (ID == "") when not found.
func (r *implRepository) GetOneTask(ctx context.Context, opt repo.GetOneTaskOptions) (model.Task, error) {
	var conds []string
	var args []any
	if opt.ID != "" {
		conds = append(conds, "id = ?")
		args = append(args, opt.ID)
	}
	if opt.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, opt.UserID)
	}
	if len(conds) == 0 {
		return model.Task{}, repo.ErrFailedToGet
	}

	query := fmt.Sprintf("SELECT %s FROM tasks WHERE %s LIMIT 1", taskColumns, strings.Join(conds, " AND "))
	t, err := r.scanTask(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return model.Task{}, nil
	}
	if err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("GetOneTask"), err)
		return model.Task{}, repo.ErrFailedToGet
	}
	return t, nil
}

// ListTasks returns tasks matching the filters, newest first.
func (r *implRepository) ListTasks(ctx context.Context, opt repo.ListTasksOptions) ([]model.Task, error) {
	conds := []string{"1=1"}
	var args []any
	if opt.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, opt.UserID)
	}
	if opt.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(opt.Status))
	}
	if opt.RecurringOnly {
		conds = append(conds, "recurrence IS NOT NULL")
	}

	query := fmt.Sprintf("SELECT %s FROM tasks WHERE %s ORDER BY created_at DESC", taskColumns, strings.Join(conds, " AND "))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("ListTasks"), err)
		return nil, repo.ErrFailedToList
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, scanErr := r.scanTask(rows)
		if scanErr != nil {
			r.l.Errorf(ctx, "%s: scan: %v", r.dsn("ListTasks"), scanErr)
			return nil, repo.ErrFailedToList
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask applies the non-nil fields of opt and returns the updated
// entity. Returns a zero-value Task when the row does not exist.
func (r *implRepository) UpdateTask(ctx context.Context, opt repo.UpdateTaskOptions) (model.Task, error) {
	sets := []string{"updated_at = ?"}
	args := []any{fmtTime(time.Now().UTC())}

	if opt.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *opt.Title)
	}
	if opt.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *opt.Notes)
	}
	if opt.ScheduledOn != nil {
		sets = append(sets, "scheduled_on = ?")
		args = append(args, fmtNullableDate(*opt.ScheduledOn))
	}
	if opt.DefaultTime != nil {
		sets = append(sets, "default_time = ?")
		args = append(args, *opt.DefaultTime)
	}
	if opt.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*opt.Status))
	}
	if opt.Recurrence != nil {
		raw, err := json.Marshal(opt.Recurrence)
		if err != nil {
			return model.Task{}, repo.ErrFailedToUpdate
		}
		sets = append(sets, "recurrence = ?")
		args = append(args, string(raw))
	} else if opt.ClearRecurrence {
		sets = append(sets, "recurrence = NULL")
	}

	args = append(args, opt.ID, opt.UserID)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = ? AND user_id = ?", strings.Join(sets, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("UpdateTask"), err)
		return model.Task{}, repo.ErrFailedToUpdate
	}

	return r.GetOneTask(ctx, repo.GetOneTaskOptions{ID: opt.ID, UserID: opt.UserID})
}

// DeleteTask removes a task. Instance rows cascade via the foreign key.
func (r *implRepository) DeleteTask(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM tasks WHERE id = ? AND user_id = ?`
	if _, err := r.db.ExecContext(ctx, query, id, userID); err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("DeleteTask"), err)
		return repo.ErrFailedToDelete
	}
	return nil
}

// ListActiveUserIDs returns users with at least one active recurring task.
func (r *implRepository) ListActiveUserIDs(ctx context.Context) ([]string, error) {
	const query = `
		SELECT DISTINCT user_id FROM tasks
		WHERE recurrence IS NOT NULL AND status != 'archived'
		ORDER BY user_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.l.Errorf(ctx, "%s: %v", r.dsn("ListActiveUserIDs"), err)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *implRepository) scanTask(row rowScanner) (model.Task, error) {
	var (
		t           model.Task
		scheduledOn sql.NullString
		startDate   sql.NullString
		recurrence  sql.NullString
		status      string
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Notes, &scheduledOn, &t.DefaultTime, &status, &recurrence, &startDate, &createdAt, &updatedAt)
	if err != nil {
		return model.Task{}, err
	}

	t.Status = model.TaskStatus(status)
	if scheduledOn.Valid {
		t.ScheduledOn = parseDate(scheduledOn.String)
	}
	if startDate.Valid {
		t.StartDate = parseDate(startDate.String)
	}
	if recurrence.Valid && recurrence.String != "" {
		var rule model.RecurrenceRule
		if err := json.Unmarshal([]byte(recurrence.String), &rule); err != nil {
			return model.Task{}, fmt.Errorf("unmarshal rule: %w", err)
		}
		t.Recurrence = &rule
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}
