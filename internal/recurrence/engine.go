package recurrence

import (
	"context"
	"fmt"
	"time"

	"taskmirror/internal/model"
	"taskmirror/internal/task/repository"
	pkgLog "taskmirror/pkg/log"
)

// Engine materializes recurrence definitions into concrete TaskInstance rows
// within a rolling horizon, and retires instances that have aged out.
//
// The engine never touches sync state; the sync paths observe new instances
// through the reconciliation sweep or through explicit triggers at the call
// site that mutated the task.
type Engine struct {
	repo repository.Repository
	l    pkgLog.Logger

	// loc is the fixed reference timezone for scheduled datetimes.
	// Occurrence dates are combined with the task's default time in this
	// location regardless of the user's locale.
	loc *time.Location

	// now is swappable in tests.
	now func() time.Time
}

// NewEngine creates a recurrence Engine.
func NewEngine(repo repository.Repository, l pkgLog.Logger, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		repo: repo,
		l:    l,
		loc:  loc,
		now:  time.Now,
	}
}

// MaterializeTask expands the task's rule over [max(start, today),
// today+horizonDays] and inserts instance rows for dates not already
// present. Idempotent: running it twice yields the same instance set.
func (e *Engine) MaterializeTask(ctx context.Context, task model.Task, horizonDays int) (int, error) {
	if !task.IsRecurring() || task.Status == model.TaskStatusArchived {
		return 0, nil
	}
	if horizonDays <= 0 {
		return 0, fmt.Errorf("materialize: horizon must be positive, got %d", horizonDays)
	}

	today := dateOnly(e.now())
	from := today
	if task.StartDate.After(from) {
		from = dateOnly(task.StartDate)
	}
	to := today.AddDate(0, 0, horizonDays)

	start := task.StartDate
	if start.IsZero() {
		start = today
	}

	dates, err := Expand(task.Recurrence, start, from, to)
	if err != nil {
		return 0, fmt.Errorf("materialize task %s: %w", task.ID, err)
	}
	if len(dates) == 0 {
		return 0, nil
	}

	opts := make([]repository.InsertInstanceOptions, 0, len(dates))
	for _, d := range dates {
		opts = append(opts, repository.InsertInstanceOptions{
			TaskID:         task.ID,
			OccurrenceDate: d,
			ScheduledAt:    e.scheduledAt(d, task.DefaultTime),
		})
	}

	inserted, err := e.repo.InsertInstances(ctx, opts)
	if err != nil {
		return 0, fmt.Errorf("materialize task %s: %w", task.ID, err)
	}
	if inserted > 0 {
		e.l.Infof(ctx, "recurrence: materialized %d instances for task %s (horizon %dd)", inserted, task.ID, horizonDays)
	}
	return inserted, nil
}

// MaterializeUser materializes every active recurring task of a user.
// Failures are per-task: one bad task does not abort the rest.
func (e *Engine) MaterializeUser(ctx context.Context, userID string, horizonDays int) (int, error) {
	tasks, err := e.repo.ListTasks(ctx, repository.ListTasksOptions{
		UserID:        userID,
		Status:        model.TaskStatusPending,
		RecurringOnly: true,
	})
	if err != nil {
		return 0, fmt.Errorf("materialize user %s: %w", userID, err)
	}

	total := 0
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, mErr := e.MaterializeTask(ctx, t, horizonDays)
		if mErr != nil {
			e.l.Errorf(ctx, "recurrence: task %s: %v", t.ID, mErr)
			continue
		}
		total += n
	}
	return total, nil
}

// RetireStaleInstances deletes completed/skipped instances whose occurrence
// date is older than the retention window. Pending instances are never
// deleted; a missed task stays visible until acted on.
func (e *Engine) RetireStaleInstances(ctx context.Context, userID string, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retire: retention must be positive, got %d", retentionDays)
	}
	cutoff := dateOnly(e.now()).AddDate(0, 0, -retentionDays)

	deleted, err := e.repo.DeleteStaleInstances(ctx, userID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retire stale instances for %s: %w", userID, err)
	}
	if deleted > 0 {
		e.l.Infof(ctx, "recurrence: retired %d stale instances for user %s", deleted, userID)
	}
	return deleted, nil
}

// scheduledAt combines an occurrence date with the task's default "HH:MM"
// time in the reference timezone. Returns nil when no default time is set.
func (e *Engine) scheduledAt(date time.Time, defaultTime string) *time.Time {
	if defaultTime == "" {
		return nil
	}
	tod, err := time.Parse("15:04", defaultTime)
	if err != nil {
		return nil
	}
	at := time.Date(date.Year(), date.Month(), date.Day(), tod.Hour(), tod.Minute(), 0, 0, e.loc)
	return &at
}
