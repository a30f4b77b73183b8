package task

import (
	"context"

	"taskmirror/internal/model"
)

// UseCase defines the business logic interface for the task domain.
type UseCase interface {
	// CreateTask creates a task and, for recurring tasks, materializes its
	// upcoming instances.
	CreateTask(ctx context.Context, sc model.Scope, input CreateTaskInput) (TaskOutput, error)

	GetTask(ctx context.Context, sc model.Scope, id string) (TaskDetailOutput, error)
	ListTasks(ctx context.Context, sc model.Scope, input ListTasksInput) ([]TaskOutput, error)

	// UpdateTask applies a partial update. A recurrence or default-time
	// change re-materializes future pending instances; past and acted-on
	// instances are preserved.
	UpdateTask(ctx context.Context, sc model.Scope, input UpdateTaskInput) (TaskOutput, error)

	// ArchiveTask hides the task and its instances from the agenda and
	// the calendar without deleting history.
	ArchiveTask(ctx context.Context, sc model.Scope, id string) (TaskOutput, error)

	DeleteTask(ctx context.Context, sc model.Scope, id string) error

	CompleteInstance(ctx context.Context, sc model.Scope, id string) (InstanceOutput, error)
	SkipInstance(ctx context.Context, sc model.Scope, id string) (InstanceOutput, error)
	ReopenInstance(ctx context.Context, sc model.Scope, id string) (InstanceOutput, error)

	// Agenda returns the flattened date-ordered view of one-off tasks and
	// instances within the range.
	Agenda(ctx context.Context, sc model.Scope, input AgendaInput) ([]model.SchedulableUnit, error)

	GetSettings(ctx context.Context, sc model.Scope) (SettingsOutput, error)
	ConnectCalendar(ctx context.Context, sc model.Scope, input ConnectCalendarInput) error
	DisconnectCalendar(ctx context.Context, sc model.Scope) error
}
