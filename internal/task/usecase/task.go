package usecase

import (
	"context"
	"fmt"

	"taskmirror/internal/model"
	"taskmirror/internal/recurrence"
	"taskmirror/internal/task"
	"taskmirror/internal/task/repository"
)

func (uc *implUseCase) CreateTask(ctx context.Context, sc model.Scope, input task.CreateTaskInput) (task.TaskOutput, error) {
	startDate := input.StartDate
	if input.Recurrence != nil && startDate.IsZero() {
		startDate = uc.today()
	}

	if input.Recurrence != nil {
		if err := recurrence.ValidateRule(input.Recurrence, startDate); err != nil {
			return task.TaskOutput{}, fmt.Errorf("%w: %v", task.ErrInvalidRule, err)
		}
	}
	if input.DefaultTime != "" {
		if err := recurrence.ValidateTimeOfDay(input.DefaultTime); err != nil {
			return task.TaskOutput{}, fmt.Errorf("%w: %v", task.ErrInvalidRule, err)
		}
	}

	created, err := uc.repo.CreateTask(ctx, repository.CreateTaskOptions{
		UserID:      sc.UserID,
		Title:       input.Title,
		Notes:       input.Notes,
		ScheduledOn: input.ScheduledOn,
		DefaultTime: input.DefaultTime,
		Recurrence:  input.Recurrence,
		StartDate:   startDate,
	})
	if err != nil {
		uc.l.Errorf(ctx, "task/usecase.CreateTask: %v", err)
		return task.TaskOutput{}, err
	}

	if created.IsRecurring() {
		if _, err := uc.engine.MaterializeTask(ctx, created, uc.horizonDays); err != nil {
			// The task row exists; the background cycle retries
			// materialization on its own.
			uc.l.Errorf(ctx, "task/usecase.CreateTask: materialize %s: %v", created.ID, err)
		}
		uc.enqueueTaskSync(ctx, sc.UserID, created)
	} else {
		uc.trigger.Enqueue(ctx, sc.UserID, model.UnitRef{Kind: model.UnitKindTask, ID: created.ID})
	}

	return task.TaskOutput{Task: created}, nil
}

func (uc *implUseCase) GetTask(ctx context.Context, sc model.Scope, id string) (task.TaskDetailOutput, error) {
	t, err := uc.repo.GetOneTask(ctx, repository.GetOneTaskOptions{ID: id, UserID: sc.UserID})
	if err != nil {
		uc.l.Errorf(ctx, "task/usecase.GetTask: %v", err)
		return task.TaskDetailOutput{}, err
	}
	if t.ID == "" {
		return task.TaskDetailOutput{}, task.ErrTaskNotFound
	}

	instances, err := uc.repo.ListInstances(ctx, repository.ListInstancesOptions{TaskID: t.ID})
	if err != nil {
		uc.l.Errorf(ctx, "task/usecase.GetTask: list instances: %v", err)
		return task.TaskDetailOutput{}, err
	}

	return task.TaskDetailOutput{Task: t, Instances: instances}, nil
}

func (uc *implUseCase) ListTasks(ctx context.Context, sc model.Scope, input task.ListTasksInput) ([]task.TaskOutput, error) {
	tasks, err := uc.repo.ListTasks(ctx, repository.ListTasksOptions{
		UserID:        sc.UserID,
		Status:        input.Status,
		RecurringOnly: input.RecurringOnly,
	})
	if err != nil {
		uc.l.Errorf(ctx, "task/usecase.ListTasks: %v", err)
		return nil, err
	}

	out := make([]task.TaskOutput, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, task.TaskOutput{Task: t})
	}
	return out, nil
}

func (uc *implUseCase) UpdateTask(ctx context.Context, sc model.Scope, input task.UpdateTaskInput) (task.TaskOutput, error) {
	existing, err := uc.repo.GetOneTask(ctx, repository.GetOneTaskOptions{ID: input.ID, UserID: sc.UserID})
	if err != nil {
		uc.l.Errorf(ctx, "task/usecase.UpdateTask: %v", err)
		return task.TaskOutput{}, err
	}
	if existing.ID == "" {
		return task.TaskOutput{}, task.ErrTaskNotFound
	}
	if existing.Status == model.TaskStatusArchived {
		return task.TaskOutput{}, task.ErrTaskArchived
	}

	if input.Recurrence != nil {
		if err := recurrence.ValidateRule(input.Recurrence, existing.StartDate); err != nil {
			return task.TaskOutput{}, fmt.Errorf("%w: %v", task.ErrInvalidRule, err)
		}
	}
	if input.DefaultTime != nil && *input.DefaultTime != "" {
		if err := recurrence.ValidateTimeOfDay(*input.DefaultTime); err != nil {
			return task.TaskOutput{}, fmt.Errorf("%w: %v", task.ErrInvalidRule, err)
		}
	}

	updated, err := uc.repo.UpdateTask(ctx, repository.UpdateTaskOptions{
		ID:              input.ID,
		UserID:          sc.UserID,
		Title:           input.Title,
		Notes:           input.Notes,
		ScheduledOn:     input.ScheduledOn,
		DefaultTime:     input.DefaultTime,
		Recurrence:      input.Recurrence,
		ClearRecurrence: input.ClearRecurrence,
	})
	if err != nil {
		uc.l.Errorf(ctx, "task/usecase.UpdateTask: %v", err)
		return task.TaskOutput{}, err
	}

	if scheduleChanged(input) {
		if err := uc.rematerialize(ctx, updated); err != nil {
			uc.l.Errorf(ctx, "task/usecase.UpdateTask: rematerialize %s: %v", updated.ID, err)
		}
	}

	uc.enqueueTaskSync(ctx, sc.UserID, updated)
	return task.TaskOutput{Task: updated}, nil
}

func (uc *implUseCase) ArchiveTask(ctx context.Context, sc model.Scope, id string) (task.TaskOutput, error) {
	existing, err := uc.repo.GetOneTask(ctx, repository.GetOneTaskOptions{ID: id, UserID: sc.UserID})
	if err != nil {
		uc.l.Errorf(ctx, "task/usecase.ArchiveTask: %v", err)
		return task.TaskOutput{}, err
	}
	if existing.ID == "" {
		return task.TaskOutput{}, task.ErrTaskNotFound
	}

	archived := model.TaskStatusArchived
	updated, err := uc.repo.UpdateTask(ctx, repository.UpdateTaskOptions{
		ID:     id,
		UserID: sc.UserID,
		Status: &archived,
	})
	if err != nil {
		uc.l.Errorf(ctx, "task/usecase.ArchiveTask: %v", err)
		return task.TaskOutput{}, err
	}

	// Archived units vanish from the calendar-facing view; syncing them
	// now removes their external events.
	uc.enqueueTaskSync(ctx, sc.UserID, updated)
	return task.TaskOutput{Task: updated}, nil
}

func (uc *implUseCase) DeleteTask(ctx context.Context, sc model.Scope, id string) error {
	existing, err := uc.repo.GetOneTask(ctx, repository.GetOneTaskOptions{ID: id, UserID: sc.UserID})
	if err != nil {
		uc.l.Errorf(ctx, "task/usecase.DeleteTask: %v", err)
		return err
	}
	if existing.ID == "" {
		return task.ErrTaskNotFound
	}

	// Collect refs before the cascade removes the rows.
	instances, err := uc.repo.ListInstances(ctx, repository.ListInstancesOptions{TaskID: id})
	if err != nil {
		uc.l.Errorf(ctx, "task/usecase.DeleteTask: list instances: %v", err)
		return err
	}

	if err := uc.repo.DeleteTask(ctx, sc.UserID, id); err != nil {
		uc.l.Errorf(ctx, "task/usecase.DeleteTask: %v", err)
		return err
	}

	uc.trigger.Enqueue(ctx, sc.UserID, model.UnitRef{Kind: model.UnitKindTask, ID: id})
	for _, inst := range instances {
		uc.trigger.Enqueue(ctx, sc.UserID, model.UnitRef{Kind: model.UnitKindInstance, ID: inst.ID})
	}
	return nil
}

// rematerialize drops future pending instances and expands the current
// rule again. Completed and skipped instances are never touched.
func (uc *implUseCase) rematerialize(ctx context.Context, t model.Task) error {
	if _, err := uc.repo.DeleteFuturePendingInstances(ctx, t.ID, uc.today()); err != nil {
		return fmt.Errorf("delete future pending: %w", err)
	}
	if !t.IsRecurring() {
		return nil
	}
	if _, err := uc.engine.MaterializeTask(ctx, t, uc.horizonDays); err != nil {
		return fmt.Errorf("materialize: %w", err)
	}
	return nil
}

// scheduleChanged reports whether the update touched anything that moves
// occurrences.
func scheduleChanged(input task.UpdateTaskInput) bool {
	return input.Recurrence != nil || input.ClearRecurrence || input.DefaultTime != nil
}

// enqueueTaskSync triggers syncs for the task itself and, for recurring
// tasks, each of its materialized instances so edits propagate to every
// event.
func (uc *implUseCase) enqueueTaskSync(ctx context.Context, userID string, t model.Task) {
	uc.trigger.Enqueue(ctx, userID, model.UnitRef{Kind: model.UnitKindTask, ID: t.ID})

	instances, err := uc.repo.ListInstances(ctx, repository.ListInstancesOptions{TaskID: t.ID})
	if err != nil {
		uc.l.Errorf(ctx, "task/usecase.enqueueTaskSync: list instances: %v", err)
		return
	}
	for _, inst := range instances {
		uc.trigger.Enqueue(ctx, userID, model.UnitRef{Kind: model.UnitKindInstance, ID: inst.ID})
	}
}
