package usecase

import (
	"context"
	"time"

	"taskmirror/internal/model"
	"taskmirror/internal/task"
	"taskmirror/internal/task/repository"
)

func (uc *implUseCase) CompleteInstance(ctx context.Context, sc model.Scope, id string) (task.InstanceOutput, error) {
	now := uc.now()
	return uc.setInstanceStatus(ctx, sc, id, model.InstanceStatusCompleted, &now)
}

func (uc *implUseCase) SkipInstance(ctx context.Context, sc model.Scope, id string) (task.InstanceOutput, error) {
	return uc.setInstanceStatus(ctx, sc, id, model.InstanceStatusSkipped, nil)
}

func (uc *implUseCase) ReopenInstance(ctx context.Context, sc model.Scope, id string) (task.InstanceOutput, error) {
	return uc.setInstanceStatus(ctx, sc, id, model.InstanceStatusPending, nil)
}

func (uc *implUseCase) setInstanceStatus(ctx context.Context, sc model.Scope, id string, status model.InstanceStatus, completedAt *time.Time) (task.InstanceOutput, error) {
	existing, err := uc.repo.GetOneInstance(ctx, repository.GetOneInstanceOptions{ID: id, UserID: sc.UserID})
	if err != nil {
		uc.l.Errorf(ctx, "task/usecase.setInstanceStatus: %v", err)
		return task.InstanceOutput{}, err
	}
	if existing.ID == "" {
		return task.InstanceOutput{}, task.ErrInstanceNotFound
	}

	updated, err := uc.repo.UpdateInstanceStatus(ctx, repository.UpdateInstanceStatusOptions{
		ID:          id,
		Status:      status,
		CompletedAt: completedAt,
	})
	if err != nil {
		uc.l.Errorf(ctx, "task/usecase.setInstanceStatus: %v", err)
		return task.InstanceOutput{}, err
	}

	uc.trigger.Enqueue(ctx, sc.UserID, model.UnitRef{Kind: model.UnitKindInstance, ID: updated.ID})
	return task.InstanceOutput{Instance: updated}, nil
}
