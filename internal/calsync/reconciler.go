package calsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskmirror/internal/calsync/repository"
	"taskmirror/internal/model"
	taskrepo "taskmirror/internal/task/repository"
	pkgLog "taskmirror/pkg/log"
)

const (
	defaultSweepPastDays   = 7
	defaultSweepFutureDays = 60
)

// ReconcilerConfig controls the sweep window. Zero values select defaults.
type ReconcilerConfig struct {
	// PastDays and FutureDays bound the unit window around today.
	PastDays   int
	FutureDays int
}

// SweepSummary reports what one user sweep did.
type SweepSummary struct {
	Synced   int
	Orphaned int
	Failed   int
}

// Reconciler converges a user's whole sync state in bulk: units missing an
// event or drifted from their fingerprint get synced, and records whose
// unit no longer exists get their event removed.
//
// Orphan detection snapshots its candidates at sweep start; before acting
// it re-checks against units created after the snapshot, and SyncUnit
// re-reads the unit once more under the per-unit lock. A unit created
// mid-sweep therefore never loses its event.
type Reconciler struct {
	svc     *Service
	units   taskrepo.UnitRepository
	records repository.SyncRecordRepository
	l       pkgLog.Logger
	cfg     ReconcilerConfig

	now func() time.Time
}

// NewReconciler creates a Reconciler.
func NewReconciler(svc *Service, units taskrepo.UnitRepository, records repository.SyncRecordRepository, l pkgLog.Logger, cfg ReconcilerConfig) *Reconciler {
	if cfg.PastDays <= 0 {
		cfg.PastDays = defaultSweepPastDays
	}
	if cfg.FutureDays <= 0 {
		cfg.FutureDays = defaultSweepFutureDays
	}
	return &Reconciler{
		svc:     svc,
		units:   units,
		records: records,
		l:       l,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SweepUser reconciles one user's units and records. Per-unit failures are
// counted and skipped; the sweep stops early only on context cancellation
// or when the user's integration turns out to be disabled.
func (r *Reconciler) SweepUser(ctx context.Context, userID string) (SweepSummary, error) {
	var sum SweepSummary

	sweepStart := r.now()
	today := time.Date(sweepStart.Year(), sweepStart.Month(), sweepStart.Day(), 0, 0, 0, 0, time.UTC)

	units, err := r.units.ListSchedulableUnits(ctx, taskrepo.ListUnitsOptions{
		UserID: userID,
		From:   today.AddDate(0, 0, -r.cfg.PastDays),
		To:     today.AddDate(0, 0, r.cfg.FutureDays),
	})
	if err != nil {
		return sum, fmt.Errorf("list units: %w", err)
	}

	records, err := r.records.ListSyncRecords(ctx, userID)
	if err != nil {
		return sum, fmt.Errorf("list records: %w", err)
	}

	recordByRef := make(map[model.UnitRef]model.SyncRecord, len(records))
	for _, rec := range records {
		recordByRef[rec.Ref()] = rec
	}

	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		rec, ok := recordByRef[unit.Ref]
		if ok && rec.Fingerprint == unitFingerprint(unit) {
			continue
		}
		ok, err := r.syncOne(ctx, userID, unit.Ref, &sum)
		if err != nil {
			return sum, err
		}
		if ok {
			sum.Synced++
		}
	}

	// Orphan candidates: records whose unit was absent from the window
	// snapshot. Units created after the snapshot began are excluded, then
	// SyncUnit re-reads the unit before touching the event.
	unitRefs := make(map[model.UnitRef]struct{}, len(units))
	for _, unit := range units {
		unitRefs[unit.Ref] = struct{}{}
	}

	createdSince, err := r.units.ListUnitsCreatedSince(ctx, userID, sweepStart)
	if err != nil {
		return sum, fmt.Errorf("list units created since sweep start: %w", err)
	}
	freshRefs := make(map[model.UnitRef]struct{}, len(createdSince))
	for _, ref := range createdSince {
		freshRefs[ref] = struct{}{}
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		ref := rec.Ref()
		if _, ok := unitRefs[ref]; ok {
			continue
		}
		if _, ok := freshRefs[ref]; ok {
			continue
		}

		// The unit may simply sit outside the window; SyncUnit resolves
		// it and only removes the event when the unit is truly gone.
		unit, err := r.units.GetUnit(ctx, ref)
		if err != nil {
			sum.Failed++
			r.l.Errorf(ctx, "calsync.Reconciler.SweepUser: resolve %s: %v", ref.Key(), err)
			continue
		}
		if unit.Ref.ID != "" {
			continue
		}

		ok, err := r.syncOne(ctx, userID, ref, &sum)
		if err != nil {
			return sum, err
		}
		if ok {
			sum.Orphaned++
		}
	}

	r.l.Infof(ctx, "calsync.Reconciler.SweepUser: user %s synced=%d orphaned=%d failed=%d", userID, sum.Synced, sum.Orphaned, sum.Failed)
	return sum, nil
}

func (r *Reconciler) syncOne(ctx context.Context, userID string, ref model.UnitRef, sum *SweepSummary) (bool, error) {
	err := r.svc.SyncUnit(ctx, userID, ref)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrSyncDisabled):
		return false, err
	case ctx.Err() != nil:
		return false, ctx.Err()
	default:
		sum.Failed++
		r.l.Warnf(ctx, "calsync.Reconciler.SweepUser: sync %s: %v", ref.Key(), err)
		return false, nil
	}
}
