package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"taskmirror/internal/calsync"
	syncrepo "taskmirror/internal/calsync/repository"
	"taskmirror/internal/recurrence"
	taskrepo "taskmirror/internal/task/repository"
	pkgLog "taskmirror/pkg/log"
)

const (
	defaultCronSpec      = "0 * * * *" // hourly
	defaultHorizonDays   = 60
	defaultRetentionDays = 30
	defaultUserTimeout   = 2 * time.Minute
)

// Config controls the background cycle. Zero values select defaults.
type Config struct {
	// CronSpec is a standard 5-field cron expression for the cycle.
	CronSpec string

	// HorizonDays is how far ahead recurrence rules are materialized.
	HorizonDays int

	// RetentionDays is how long completed and skipped instances are kept.
	RetentionDays int

	// UserTimeout bounds one user's whole cycle.
	UserTimeout time.Duration
}

// Scheduler drives the periodic background cycle: per user it materializes
// recurrence rules, retires aged-out instances, and runs the reconciliation
// sweep. Users are processed sequentially so the cycle never floods the
// store or the external API.
type Scheduler struct {
	engine     *recurrence.Engine
	reconciler *calsync.Reconciler
	tasks      taskrepo.TaskRepository
	integ      syncrepo.IntegrationRepository
	l          pkgLog.Logger
	cfg        Config

	cron    *cron.Cron
	running chan struct{}
}

// New creates a Scheduler.
func New(engine *recurrence.Engine, reconciler *calsync.Reconciler, tasks taskrepo.TaskRepository, integ syncrepo.IntegrationRepository, l pkgLog.Logger, cfg Config) *Scheduler {
	if cfg.CronSpec == "" {
		cfg.CronSpec = defaultCronSpec
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = defaultHorizonDays
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaultRetentionDays
	}
	if cfg.UserTimeout <= 0 {
		cfg.UserTimeout = defaultUserTimeout
	}

	return &Scheduler{
		engine:     engine,
		reconciler: reconciler,
		tasks:      tasks,
		integ:      integ,
		l:          l,
		cfg:        cfg,
		cron:       cron.New(),
		running:    make(chan struct{}, 1),
	}
}

// Start registers the cron entry and launches the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.CronSpec, func() {
		if err := s.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.l.Errorf(ctx, "scheduler: cycle failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", s.cfg.CronSpec, err)
	}

	s.cron.Start()
	s.l.Infof(ctx, "scheduler: started with spec %q", s.cfg.CronSpec)
	return nil
}

// Stop halts the cron loop and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	// Take the cycle slot to wait out an in-flight RunCycle.
	s.running <- struct{}{}
	<-s.running
}

// RunCycle executes one full background cycle. If a previous cycle is
// still running it is skipped, not queued.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	select {
	case s.running <- struct{}{}:
	default:
		s.l.Warnf(ctx, "scheduler: previous cycle still running, skipping")
		return nil
	}
	defer func() { <-s.running }()

	started := time.Now()

	userIDs, err := s.collectUserIDs(ctx)
	if err != nil {
		return err
	}

	var failed int
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.runUser(ctx, userID); err != nil {
			failed++
			s.l.Errorf(ctx, "scheduler: user %s cycle: %v", userID, err)
		}
	}

	s.l.Infof(ctx, "scheduler: cycle done, users=%d failed=%d took=%s", len(userIDs), failed, time.Since(started).Round(time.Millisecond))
	return nil
}

// runUser performs one user's cycle under its own timeout so a stuck user
// cannot stall the rest of the batch.
func (s *Scheduler) runUser(ctx context.Context, userID string) error {
	userCtx, cancel := context.WithTimeout(ctx, s.cfg.UserTimeout)
	defer cancel()

	if _, err := s.engine.MaterializeUser(userCtx, userID, s.cfg.HorizonDays); err != nil {
		return fmt.Errorf("materialize: %w", err)
	}
	if _, err := s.engine.RetireStaleInstances(userCtx, userID, s.cfg.RetentionDays); err != nil {
		return fmt.Errorf("retire stale instances: %w", err)
	}

	if _, err := s.reconciler.SweepUser(userCtx, userID); err != nil {
		if errors.Is(err, calsync.ErrSyncDisabled) {
			return nil
		}
		return fmt.Errorf("sweep: %w", err)
	}
	return nil
}

// collectUserIDs unions users with active recurring tasks and users with
// sync enabled: the former need materialization even without a calendar,
// the latter need sweeps even without recurring tasks.
func (s *Scheduler) collectUserIDs(ctx context.Context) ([]string, error) {
	active, err := s.tasks.ListActiveUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	syncEnabled, err := s.integ.ListSyncEnabledUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sync-enabled users: %w", err)
	}

	seen := make(map[string]struct{}, len(active)+len(syncEnabled))
	var out []string
	for _, id := range append(active, syncEnabled...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
