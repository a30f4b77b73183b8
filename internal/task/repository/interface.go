package repository

import (
	"context"
	"time"

	"taskmirror/internal/model"
)

// Repository is the composed interface for the task domain data store.
type Repository interface {
	TaskRepository
	InstanceRepository
	UnitRepository
}

// TaskRepository defines data access for task definitions.
// Not-found is reported as a zero-value Task (ID == ""), not an error.
type TaskRepository interface {
	CreateTask(ctx context.Context, opt CreateTaskOptions) (model.Task, error)
	GetOneTask(ctx context.Context, opt GetOneTaskOptions) (model.Task, error)
	ListTasks(ctx context.Context, opt ListTasksOptions) ([]model.Task, error)
	UpdateTask(ctx context.Context, opt UpdateTaskOptions) (model.Task, error)
	DeleteTask(ctx context.Context, userID, id string) error

	// ListActiveUserIDs returns users owning at least one non-archived
	// recurring task. Drives the background materialization loop.
	ListActiveUserIDs(ctx context.Context) ([]string, error)
}

// InstanceRepository defines data access for materialized occurrences.
type InstanceRepository interface {
	// InsertInstances inserts the given occurrence rows inside a single
	// transaction, one savepoint per row: a (task_id, occurrence_date)
	// conflict rolls back only the offending insert and the rest of the
	// batch commits. Returns the number of rows actually inserted.
	InsertInstances(ctx context.Context, opts []InsertInstanceOptions) (int, error)

	GetOneInstance(ctx context.Context, opt GetOneInstanceOptions) (model.TaskInstance, error)
	ListInstances(ctx context.Context, opt ListInstancesOptions) ([]model.TaskInstance, error)
	UpdateInstanceStatus(ctx context.Context, opt UpdateInstanceStatusOptions) (model.TaskInstance, error)

	// DeleteFuturePendingInstances removes pending instances of a task
	// dated on or after from. Used when a rule changes and future
	// occurrences must be re-materialized.
	DeleteFuturePendingInstances(ctx context.Context, taskID string, from time.Time) (int64, error)

	// DeleteStaleInstances removes completed/skipped instances older than
	// before. Pending instances are never deleted regardless of age.
	DeleteStaleInstances(ctx context.Context, userID string, before time.Time) (int64, error)

	DeleteInstancesByTask(ctx context.Context, taskID string) (int64, error)
}

// UnitRepository exposes the flattened calendar-facing view of tasks and
// instances.
type UnitRepository interface {
	// ListSchedulableUnits returns non-recurring, non-archived tasks in
	// range plus instances whose parent task is not archived.
	ListSchedulableUnits(ctx context.Context, opt ListUnitsOptions) ([]model.SchedulableUnit, error)

	// GetUnit resolves a unit reference. Not-found is a zero-value unit
	// (Ref.ID == ""), not an error.
	GetUnit(ctx context.Context, ref model.UnitRef) (model.SchedulableUnit, error)

	// ListUnitsCreatedSince returns refs of units created at or after
	// since. The reconciliation sweep re-checks these before deleting
	// anything as an orphan.
	ListUnitsCreatedSince(ctx context.Context, userID string, since time.Time) ([]model.UnitRef, error)
}
