package usecase

import (
	"context"
	"time"

	syncrepo "taskmirror/internal/calsync/repository"
	"taskmirror/internal/model"
	"taskmirror/internal/recurrence"
	"taskmirror/internal/task/repository"
	pkgLog "taskmirror/pkg/log"
)

// SyncTrigger schedules a fire-and-forget calendar sync for one unit.
// calsync.Trigger satisfies it.
type SyncTrigger interface {
	Enqueue(ctx context.Context, userID string, ref model.UnitRef)
}

type implUseCase struct {
	l            pkgLog.Logger
	repo         repository.Repository
	integrations syncrepo.IntegrationRepository
	engine       *recurrence.Engine
	trigger      SyncTrigger

	horizonDays int
	now         func() time.Time
}

// New creates a new task UseCase instance.
func New(
	l pkgLog.Logger,
	repo repository.Repository,
	integrations syncrepo.IntegrationRepository,
	engine *recurrence.Engine,
	trigger SyncTrigger,
	horizonDays int,
) *implUseCase {
	return &implUseCase{
		l:            l,
		repo:         repo,
		integrations: integrations,
		engine:       engine,
		trigger:      trigger,
		horizonDays:  horizonDays,
		now:          time.Now,
	}
}

func (uc *implUseCase) today() time.Time {
	n := uc.now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}
