package calsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskmirror/internal/calsync/repository"
	"taskmirror/internal/model"
	taskrepo "taskmirror/internal/task/repository"
	"taskmirror/pkg/gcalendar"
	pkgLog "taskmirror/pkg/log"
	"taskmirror/pkg/throttle"
)

// eventDuration is the length of timed events pushed to the calendar.
const eventDuration = 30 * time.Minute

// Service mirrors schedulable units to the user's external calendar.
//
// SyncUnit is the single convergence point for all sync work: triggers and
// the reconciliation sweep both go through it. It holds a per-unit lock,
// re-reads current state from the store, and converges the external event
// to it, so concurrent callers for the same unit serialize and the last one
// observes an already-converged state.
type Service struct {
	units    taskrepo.UnitRepository
	records  repository.Repository
	provider ClientProvider
	throttle *throttle.Throttle
	l        pkgLog.Logger

	locks *keyedLock

	// loc is the fixed reference timezone used for timed event payloads.
	loc *time.Location

	now func() time.Time
}

// NewService creates a sync Service.
func NewService(units taskrepo.UnitRepository, records repository.Repository, provider ClientProvider, th *throttle.Throttle, l pkgLog.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		units:    units,
		records:  records,
		provider: provider,
		throttle: th,
		l:        l,
		locks:    newKeyedLock(),
		loc:      loc,
		now:      time.Now,
	}
}

func (s *Service) dsn(method string) string {
	return fmt.Sprintf("calsync.Service.%s", method)
}

// SyncUnit converges the external calendar event for one unit with the
// unit's current stored state. Safe to call redundantly; a unit that is
// already in sync results in no external write.
//
// An unauthorized response disables the user's integration and returns
// ErrSyncDisabled so batch callers stop early.
func (s *Service) SyncUnit(ctx context.Context, userID string, ref model.UnitRef) error {
	unlock := s.locks.Lock(ref.Key())
	defer unlock()

	// State is read under the lock: a trigger fired before an older
	// mutation finished syncing still observes the newest row.
	unit, err := s.units.GetUnit(ctx, ref)
	if err != nil {
		s.l.Errorf(ctx, "%s: get unit %s: %v", s.dsn("SyncUnit"), ref.Key(), err)
		return fmt.Errorf("%w: %v", ErrFailedToSync, err)
	}

	rec, err := s.records.GetSyncRecord(ctx, ref)
	if err != nil {
		s.l.Errorf(ctx, "%s: get record %s: %v", s.dsn("SyncUnit"), ref.Key(), err)
		return fmt.Errorf("%w: %v", ErrFailedToSync, err)
	}

	unitExists := unit.Ref.ID != ""
	recExists := rec.ID != ""

	switch {
	case !unitExists && !recExists:
		return nil
	case !unitExists:
		return s.removeEvent(ctx, userID, rec)
	case !recExists:
		return s.createEvent(ctx, userID, unit)
	default:
		return s.updateEvent(ctx, userID, unit, rec)
	}
}

// clientFor resolves the user's calendar client. Credentials the provider
// reports as permanently dead disable the integration here so neither the
// trigger nor the sweep keeps retrying a hopeless refresh.
func (s *Service) clientFor(ctx context.Context, userID string) (CalendarClient, model.CalendarIntegration, error) {
	client, integ, err := s.provider.ClientFor(ctx, userID)
	if errors.Is(err, ErrCredentialsRejected) {
		s.l.Warnf(ctx, "%s: credentials rejected for user %s, disabling sync", s.dsn("clientFor"), userID)
		if disErr := s.records.DisableIntegration(ctx, userID, "calendar credentials rejected"); disErr != nil {
			s.l.Errorf(ctx, "%s: disable integration for user %s: %v", s.dsn("clientFor"), userID, disErr)
		}
		return nil, model.CalendarIntegration{}, fmt.Errorf("%w: %v", ErrSyncDisabled, err)
	}
	return client, integ, err
}

func (s *Service) createEvent(ctx context.Context, userID string, unit model.SchedulableUnit) error {
	client, integ, err := s.clientFor(ctx, userID)
	if err != nil {
		return err
	}

	var ev gcalendar.Event
	err = s.callExternal(ctx, userID, func(ctx context.Context) error {
		var callErr error
		ev, callErr = client.InsertEvent(ctx, s.buildEventRequest(unit, integ.CalendarID))
		return callErr
	})
	if err != nil {
		return err
	}

	fp := unitFingerprint(unit)
	_, err = s.records.CreateSyncRecord(ctx, repository.CreateSyncRecordOptions{
		UserID:      userID,
		Ref:         unit.Ref,
		EventID:     ev.ID,
		Fingerprint: fp,
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrDuplicateRecord) {
		s.l.Errorf(ctx, "%s: create record %s: %v", s.dsn("createEvent"), unit.Ref.Key(), err)
		return fmt.Errorf("%w: %v", ErrFailedToSync, err)
	}

	// Another writer created the mapping first; its row is authoritative.
	// Remove the event we just inserted and converge onto the existing one.
	s.l.Warnf(ctx, "%s: duplicate record for %s, removing redundant event %s", s.dsn("createEvent"), unit.Ref.Key(), ev.ID)
	if delErr := s.callExternal(ctx, userID, func(ctx context.Context) error {
		return client.DeleteEvent(ctx, integ.CalendarID, ev.ID)
	}); delErr != nil && !errors.Is(delErr, gcalendar.ErrNotFound) {
		s.l.Errorf(ctx, "%s: delete redundant event %s: %v", s.dsn("createEvent"), ev.ID, delErr)
	}

	existing, err := s.records.GetSyncRecord(ctx, unit.Ref)
	if err != nil || existing.ID == "" {
		return fmt.Errorf("%w: reload record after duplicate: %v", ErrFailedToSync, err)
	}
	return s.updateEvent(ctx, userID, unit, existing)
}

func (s *Service) updateEvent(ctx context.Context, userID string, unit model.SchedulableUnit, rec model.SyncRecord) error {
	fp := unitFingerprint(unit)
	if fp == rec.Fingerprint {
		return nil
	}

	client, integ, err := s.clientFor(ctx, userID)
	if err != nil {
		return err
	}

	err = s.callExternal(ctx, userID, func(ctx context.Context) error {
		_, callErr := client.UpdateEvent(ctx, rec.EventID, s.buildEventRequest(unit, integ.CalendarID))
		return callErr
	})
	if errors.Is(err, gcalendar.ErrNotFound) {
		// The user deleted the event by hand. Recreate it.
		var ev gcalendar.Event
		err = s.callExternal(ctx, userID, func(ctx context.Context) error {
			var callErr error
			ev, callErr = client.InsertEvent(ctx, s.buildEventRequest(unit, integ.CalendarID))
			return callErr
		})
		if err != nil {
			return err
		}
		rec.EventID = ev.ID
	} else if err != nil {
		return err
	}

	if err := s.records.UpdateSyncRecord(ctx, repository.UpdateSyncRecordOptions{
		Ref:         unit.Ref,
		EventID:     rec.EventID,
		Fingerprint: fp,
	}); err != nil {
		s.l.Errorf(ctx, "%s: update record %s: %v", s.dsn("updateEvent"), unit.Ref.Key(), err)
		return fmt.Errorf("%w: %v", ErrFailedToSync, err)
	}
	return nil
}

func (s *Service) removeEvent(ctx context.Context, userID string, rec model.SyncRecord) error {
	client, integ, err := s.clientFor(ctx, userID)
	if errors.Is(err, ErrSyncDisabled) {
		// No credentials to delete the event with; drop the stale mapping
		// so it does not linger forever.
		if delErr := s.records.DeleteSyncRecord(ctx, rec.Ref()); delErr != nil {
			return fmt.Errorf("%w: %v", ErrFailedToSync, delErr)
		}
		return nil
	}
	if err != nil {
		return err
	}

	err = s.callExternal(ctx, userID, func(ctx context.Context) error {
		return client.DeleteEvent(ctx, integ.CalendarID, rec.EventID)
	})
	if err != nil && !errors.Is(err, gcalendar.ErrNotFound) {
		return err
	}

	if err := s.records.DeleteSyncRecord(ctx, rec.Ref()); err != nil {
		s.l.Errorf(ctx, "%s: delete record %s: %v", s.dsn("removeEvent"), rec.Ref().Key(), err)
		return fmt.Errorf("%w: %v", ErrFailedToSync, err)
	}
	return nil
}

// callExternal routes one calendar API call through the shared throttle and
// feeds the outcome back into it. Unauthorized responses disable the
// integration.
func (s *Service) callExternal(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	if err := s.throttle.Wait(ctx); err != nil {
		return err
	}

	err := fn(ctx)
	switch {
	case err == nil, errors.Is(err, gcalendar.ErrNotFound):
		s.throttle.OnSuccess()
		return err
	case errors.Is(err, gcalendar.ErrRateLimited):
		s.throttle.OnRateLimited()
		return err
	case errors.Is(err, gcalendar.ErrUnauthorized):
		s.throttle.OnSuccess()
		s.l.Warnf(ctx, "%s: credentials rejected for user %s, disabling sync", s.dsn("callExternal"), userID)
		if disErr := s.records.DisableIntegration(ctx, userID, "calendar credentials rejected"); disErr != nil {
			s.l.Errorf(ctx, "%s: disable integration for user %s: %v", s.dsn("callExternal"), userID, disErr)
		}
		return fmt.Errorf("%w: %v", ErrSyncDisabled, err)
	default:
		s.throttle.OnSuccess()
		return err
	}
}

func (s *Service) buildEventRequest(unit model.SchedulableUnit, calID string) gcalendar.EventRequest {
	req := gcalendar.EventRequest{
		CalendarID:  calID,
		Summary:     eventSummary(unit),
		Description: unit.Notes,
	}
	if unit.ScheduledAt == nil {
		req.AllDay = true
		req.Date = unit.Date
		return req
	}
	start := unit.ScheduledAt.In(s.loc)
	req.StartTime = start
	req.EndTime = start.Add(eventDuration)
	req.Timezone = s.loc.String()
	return req
}

func eventSummary(unit model.SchedulableUnit) string {
	switch unit.Status {
	case string(model.InstanceStatusCompleted):
		return "✓ " + unit.Title
	case string(model.InstanceStatusSkipped):
		return "✗ " + unit.Title
	default:
		return unit.Title
	}
}
