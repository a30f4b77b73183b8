package usecase

import (
	"context"

	"taskmirror/internal/model"
	"taskmirror/internal/task"
	"taskmirror/internal/task/repository"
)

const defaultAgendaDays = 7

func (uc *implUseCase) Agenda(ctx context.Context, sc model.Scope, input task.AgendaInput) ([]model.SchedulableUnit, error) {
	from, to := input.From, input.To
	if from.IsZero() {
		from = uc.today()
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, defaultAgendaDays)
	}
	if to.Before(from) {
		return nil, task.ErrInvalidRange
	}

	units, err := uc.repo.ListSchedulableUnits(ctx, repository.ListUnitsOptions{
		UserID: sc.UserID,
		From:   from,
		To:     to,
	})
	if err != nil {
		uc.l.Errorf(ctx, "task/usecase.Agenda: %v", err)
		return nil, err
	}
	return units, nil
}
