package task

import (
	"time"

	"taskmirror/internal/model"
)

// CreateTaskInput carries the fields for a new task. A nil Recurrence makes
// a one-off task scheduled on ScheduledOn.
type CreateTaskInput struct {
	Title       string
	Notes       string
	ScheduledOn time.Time
	DefaultTime string
	Recurrence  *model.RecurrenceRule
	StartDate   time.Time
}

// ListTasksInput filters the task list.
type ListTasksInput struct {
	Status        model.TaskStatus
	RecurringOnly bool
}

// UpdateTaskInput is a partial update; nil fields are left unchanged.
type UpdateTaskInput struct {
	ID string

	Title       *string
	Notes       *string
	ScheduledOn *time.Time
	DefaultTime *string
	Recurrence  *model.RecurrenceRule
	// ClearRecurrence turns a recurring task into a one-off.
	ClearRecurrence bool
}

// AgendaInput bounds the agenda view. Zero values default to a week from
// today.
type AgendaInput struct {
	From time.Time
	To   time.Time
}

// ConnectCalendarInput carries the OAuth credentials obtained from the
// provider's consent flow.
type ConnectCalendarInput struct {
	CalendarID   string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
}

// TaskOutput is the use case result for task operations.
type TaskOutput struct {
	Task model.Task
}

// TaskDetailOutput is a task plus its materialized instances.
type TaskDetailOutput struct {
	Task      model.Task
	Instances []model.TaskInstance
}

// InstanceOutput is the use case result for instance operations.
type InstanceOutput struct {
	Instance model.TaskInstance
}

// SettingsOutput reports the calendar integration state, including the
// reason sync was disabled automatically, if it was.
type SettingsOutput struct {
	Connected      bool
	SyncEnabled    bool
	DisabledReason string
	CalendarID     string
}
