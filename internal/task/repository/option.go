package repository

import (
	"time"

	"taskmirror/internal/model"
)

// CreateTaskOptions holds parameters for inserting a new task.
type CreateTaskOptions struct {
	UserID      string
	Title       string
	Notes       string
	ScheduledOn time.Time
	DefaultTime string
	Recurrence  *model.RecurrenceRule
	StartDate   time.Time
}

// GetOneTaskOptions holds filter parameters for fetching a single task.
// All non-empty fields are applied as AND conditions.
type GetOneTaskOptions struct {
	ID     string
	UserID string
}

// ListTasksOptions holds filter parameters for listing tasks.
type ListTasksOptions struct {
	UserID        string
	Status        model.TaskStatus
	RecurringOnly bool
}

// UpdateTaskOptions holds parameters for updating an existing task.
// Nil/zero fields other than ID and UserID are left unchanged.
type UpdateTaskOptions struct {
	ID     string
	UserID string

	Title       *string
	Notes       *string
	ScheduledOn *time.Time
	DefaultTime *string
	Status      *model.TaskStatus
	Recurrence  *model.RecurrenceRule
	// ClearRecurrence removes the rule, turning the task non-recurring.
	ClearRecurrence bool
}

// InsertInstanceOptions is one occurrence row to materialize.
type InsertInstanceOptions struct {
	TaskID         string
	OccurrenceDate time.Time
	ScheduledAt    *time.Time
}

// GetOneInstanceOptions holds filter parameters for fetching one instance.
type GetOneInstanceOptions struct {
	ID     string
	TaskID string
	// UserID, when set, joins through the parent task for ownership checks.
	UserID string
}

// ListInstancesOptions holds filter parameters for listing instances.
type ListInstancesOptions struct {
	TaskID string
	Status model.InstanceStatus
	From   time.Time
	To     time.Time
}

// UpdateInstanceStatusOptions marks an instance completed or skipped.
type UpdateInstanceStatusOptions struct {
	ID          string
	Status      model.InstanceStatus
	CompletedAt *time.Time
}

// ListUnitsOptions bounds the calendar-facing unit view.
type ListUnitsOptions struct {
	UserID string
	From   time.Time
	To     time.Time
}
