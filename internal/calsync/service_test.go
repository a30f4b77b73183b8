package calsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"taskmirror/internal/calsync/repository"
	"taskmirror/internal/model"
	taskrepo "taskmirror/internal/task/repository"
	"taskmirror/internal/token"
	"taskmirror/pkg/gcalendar"
	pkgLog "taskmirror/pkg/log"
	"taskmirror/pkg/throttle"
)

type fakeUnits struct {
	mu    sync.Mutex
	units map[model.UnitRef]model.SchedulableUnit
}

func newFakeUnits() *fakeUnits {
	return &fakeUnits{units: make(map[model.UnitRef]model.SchedulableUnit)}
}

func (f *fakeUnits) put(u model.SchedulableUnit) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.units[u.Ref] = u
}

func (f *fakeUnits) remove(ref model.UnitRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.units, ref)
}

func (f *fakeUnits) ListSchedulableUnits(ctx context.Context, opt taskrepo.ListUnitsOptions) ([]model.SchedulableUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SchedulableUnit
	for _, u := range f.units {
		if u.UserID != opt.UserID {
			continue
		}
		if u.Date.Before(opt.From) || u.Date.After(opt.To) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUnits) GetUnit(ctx context.Context, ref model.UnitRef) (model.SchedulableUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.units[ref], nil
}

func (f *fakeUnits) ListUnitsCreatedSince(ctx context.Context, userID string, since time.Time) ([]model.UnitRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.UnitRef
	for ref, u := range f.units {
		if u.UserID == userID && !u.CreatedAt.Before(since) {
			out = append(out, ref)
		}
	}
	return out, nil
}

type fakeSyncRepo struct {
	mu           sync.Mutex
	records      map[model.UnitRef]model.SyncRecord
	integrations map[string]model.CalendarIntegration
}

func newFakeSyncRepo() *fakeSyncRepo {
	return &fakeSyncRepo{
		records:      make(map[model.UnitRef]model.SyncRecord),
		integrations: make(map[string]model.CalendarIntegration),
	}
}

func (f *fakeSyncRepo) CreateSyncRecord(ctx context.Context, opt repository.CreateSyncRecordOptions) (model.SyncRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[opt.Ref]; ok {
		return model.SyncRecord{}, repository.ErrDuplicateRecord
	}
	rec := model.SyncRecord{
		ID:          uuid.NewString(),
		UserID:      opt.UserID,
		UnitKind:    opt.Ref.Kind,
		UnitID:      opt.Ref.ID,
		EventID:     opt.EventID,
		Fingerprint: opt.Fingerprint,
		SyncedAt:    time.Now(),
	}
	f.records[opt.Ref] = rec
	return rec, nil
}

func (f *fakeSyncRepo) GetSyncRecord(ctx context.Context, ref model.UnitRef) (model.SyncRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[ref], nil
}

func (f *fakeSyncRepo) ListSyncRecords(ctx context.Context, userID string) ([]model.SyncRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SyncRecord
	for _, rec := range f.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeSyncRepo) UpdateSyncRecord(ctx context.Context, opt repository.UpdateSyncRecordOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[opt.Ref]
	if !ok {
		return repository.ErrFailedToUpdate
	}
	rec.EventID = opt.EventID
	rec.Fingerprint = opt.Fingerprint
	f.records[opt.Ref] = rec
	return nil
}

func (f *fakeSyncRepo) DeleteSyncRecord(ctx context.Context, ref model.UnitRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, ref)
	return nil
}

func (f *fakeSyncRepo) GetIntegration(ctx context.Context, userID string) (model.CalendarIntegration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.integrations[userID], nil
}

func (f *fakeSyncRepo) UpsertIntegration(ctx context.Context, opt repository.UpsertIntegrationOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.integrations[opt.UserID] = model.CalendarIntegration{
		UserID:      opt.UserID,
		CalendarID:  opt.CalendarID,
		SyncEnabled: opt.SyncEnabled,
	}
	return nil
}

func (f *fakeSyncRepo) ListSyncEnabledUserIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for id, integ := range f.integrations {
		if integ.SyncEnabled {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeSyncRepo) DisableIntegration(ctx context.Context, userID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	integ := f.integrations[userID]
	integ.SyncEnabled = false
	integ.DisabledReason = reason
	f.integrations[userID] = integ
	return nil
}

func (f *fakeSyncRepo) AcquireRefreshLock(ctx context.Context, userID, owner string, staleBefore time.Time) (bool, error) {
	return true, nil
}

func (f *fakeSyncRepo) ReleaseRefreshLock(ctx context.Context, userID, owner string) error {
	return nil
}

func (f *fakeSyncRepo) SaveToken(ctx context.Context, opt repository.SaveTokenOptions) error {
	return nil
}

type fakeClient struct {
	mu      sync.Mutex
	events  map[string]gcalendar.EventRequest
	seq     int
	inserts int
	updates int
	deletes int

	nextErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{events: make(map[string]gcalendar.EventRequest)}
}

func (f *fakeClient) takeErr() error {
	err := f.nextErr
	f.nextErr = nil
	return err
}

func (f *fakeClient) InsertEvent(ctx context.Context, req gcalendar.EventRequest) (gcalendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return gcalendar.Event{}, err
	}
	f.inserts++
	f.seq++
	id := fmt.Sprintf("evt-%d", f.seq)
	f.events[id] = req
	return gcalendar.Event{ID: id, Summary: req.Summary}, nil
}

func (f *fakeClient) UpdateEvent(ctx context.Context, eventID string, req gcalendar.EventRequest) (gcalendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return gcalendar.Event{}, err
	}
	if _, ok := f.events[eventID]; !ok {
		return gcalendar.Event{}, gcalendar.ErrNotFound
	}
	f.updates++
	f.events[eventID] = req
	return gcalendar.Event{ID: eventID, Summary: req.Summary}, nil
}

func (f *fakeClient) DeleteEvent(ctx context.Context, calID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	if _, ok := f.events[eventID]; !ok {
		return gcalendar.ErrNotFound
	}
	f.deletes++
	delete(f.events, eventID)
	return nil
}

func (f *fakeClient) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fakeProvider struct {
	client *fakeClient
	repo   *fakeSyncRepo
}

func (p *fakeProvider) ClientFor(ctx context.Context, userID string) (CalendarClient, model.CalendarIntegration, error) {
	integ, _ := p.repo.GetIntegration(ctx, userID)
	if integ.UserID == "" || !integ.SyncEnabled {
		return nil, model.CalendarIntegration{}, ErrSyncDisabled
	}
	return p.client, integ, nil
}

func newTestService(t *testing.T) (*Service, *fakeUnits, *fakeSyncRepo, *fakeClient) {
	t.Helper()

	units := newFakeUnits()
	repo := newFakeSyncRepo()
	client := newFakeClient()

	if err := repo.UpsertIntegration(context.Background(), repository.UpsertIntegrationOptions{
		UserID:      "user-1",
		CalendarID:  "primary",
		SyncEnabled: true,
	}); err != nil {
		t.Fatal(err)
	}

	th := throttle.New(throttle.Config{InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond})
	svc := NewService(units, repo, &fakeProvider{client: client, repo: repo}, th, pkgLog.NewNop(), time.UTC)
	return svc, units, repo, client
}

func testUnit(id string, date time.Time) model.SchedulableUnit {
	return model.SchedulableUnit{
		Ref:       model.UnitRef{Kind: model.UnitKindInstance, ID: id},
		UserID:    "user-1",
		Title:     "Water plants",
		Date:      date,
		Status:    string(model.InstanceStatusPending),
		CreatedAt: date.AddDate(0, 0, -30),
	}
}

func TestSyncUnitCreatesEvent(t *testing.T) {
	svc, units, repo, client := newTestService(t)
	ctx := context.Background()

	unit := testUnit("inst-1", time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC))
	units.put(unit)

	if err := svc.SyncUnit(ctx, "user-1", unit.Ref); err != nil {
		t.Fatalf("SyncUnit: %v", err)
	}

	if client.inserts != 1 {
		t.Errorf("inserts = %d, want 1", client.inserts)
	}
	rec, _ := repo.GetSyncRecord(ctx, unit.Ref)
	if rec.ID == "" {
		t.Fatal("expected sync record")
	}
	if rec.Fingerprint != unitFingerprint(unit) {
		t.Error("record fingerprint does not match unit")
	}
}

func TestSyncUnitNoopWhenUnchanged(t *testing.T) {
	svc, units, _, client := newTestService(t)
	ctx := context.Background()

	unit := testUnit("inst-1", time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC))
	units.put(unit)

	if err := svc.SyncUnit(ctx, "user-1", unit.Ref); err != nil {
		t.Fatal(err)
	}
	if err := svc.SyncUnit(ctx, "user-1", unit.Ref); err != nil {
		t.Fatal(err)
	}

	if client.inserts != 1 || client.updates != 0 {
		t.Errorf("inserts=%d updates=%d, want 1/0", client.inserts, client.updates)
	}
}

func TestSyncUnitUpdatesOnDrift(t *testing.T) {
	svc, units, repo, client := newTestService(t)
	ctx := context.Background()

	unit := testUnit("inst-1", time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC))
	units.put(unit)
	if err := svc.SyncUnit(ctx, "user-1", unit.Ref); err != nil {
		t.Fatal(err)
	}

	unit.Status = string(model.InstanceStatusCompleted)
	units.put(unit)
	if err := svc.SyncUnit(ctx, "user-1", unit.Ref); err != nil {
		t.Fatal(err)
	}

	if client.updates != 1 {
		t.Errorf("updates = %d, want 1", client.updates)
	}
	rec, _ := repo.GetSyncRecord(ctx, unit.Ref)
	if rec.Fingerprint != unitFingerprint(unit) {
		t.Error("record fingerprint not advanced after update")
	}
	if got := client.events[rec.EventID].Summary; got != "✓ Water plants" {
		t.Errorf("summary = %q, want completed marker", got)
	}
}

func TestSyncUnitRemovesEventWhenUnitGone(t *testing.T) {
	svc, units, repo, client := newTestService(t)
	ctx := context.Background()

	unit := testUnit("inst-1", time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC))
	units.put(unit)
	if err := svc.SyncUnit(ctx, "user-1", unit.Ref); err != nil {
		t.Fatal(err)
	}

	units.remove(unit.Ref)
	if err := svc.SyncUnit(ctx, "user-1", unit.Ref); err != nil {
		t.Fatal(err)
	}

	if client.eventCount() != 0 {
		t.Errorf("event count = %d, want 0", client.eventCount())
	}
	rec, _ := repo.GetSyncRecord(ctx, unit.Ref)
	if rec.ID != "" {
		t.Error("sync record should be deleted")
	}
}

func TestSyncUnitRecreatesHandDeletedEvent(t *testing.T) {
	svc, units, repo, client := newTestService(t)
	ctx := context.Background()

	unit := testUnit("inst-1", time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC))
	units.put(unit)
	if err := svc.SyncUnit(ctx, "user-1", unit.Ref); err != nil {
		t.Fatal(err)
	}

	rec, _ := repo.GetSyncRecord(ctx, unit.Ref)
	client.mu.Lock()
	delete(client.events, rec.EventID)
	client.mu.Unlock()

	unit.Notes = "use the small watering can"
	units.put(unit)
	if err := svc.SyncUnit(ctx, "user-1", unit.Ref); err != nil {
		t.Fatal(err)
	}

	if client.inserts != 2 {
		t.Errorf("inserts = %d, want 2 (original + recreated)", client.inserts)
	}
	fresh, _ := repo.GetSyncRecord(ctx, unit.Ref)
	if fresh.EventID == rec.EventID {
		t.Error("record should point at the recreated event")
	}
}

func TestSyncUnitConcurrentCreatesOneEvent(t *testing.T) {
	svc, units, repo, client := newTestService(t)
	ctx := context.Background()

	unit := testUnit("inst-1", time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC))
	units.put(unit)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.SyncUnit(ctx, "user-1", unit.Ref)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("SyncUnit[%d]: %v", i, err)
		}
	}
	if client.eventCount() != 1 {
		t.Fatalf("event count = %d, want exactly 1", client.eventCount())
	}
	if client.inserts != 1 {
		t.Errorf("inserts = %d, want 1 (serialized by unit lock)", client.inserts)
	}

	recs, _ := repo.ListSyncRecords(ctx, "user-1")
	if len(recs) != 1 {
		t.Errorf("records = %d, want 1", len(recs))
	}
}

func TestSyncUnitUnauthorizedDisablesIntegration(t *testing.T) {
	svc, units, repo, client := newTestService(t)
	ctx := context.Background()

	unit := testUnit("inst-1", time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC))
	units.put(unit)
	client.nextErr = fmt.Errorf("insert: %w", gcalendar.ErrUnauthorized)

	err := svc.SyncUnit(ctx, "user-1", unit.Ref)
	if !errors.Is(err, ErrSyncDisabled) {
		t.Fatalf("err = %v, want ErrSyncDisabled", err)
	}

	integ, _ := repo.GetIntegration(ctx, "user-1")
	if integ.SyncEnabled {
		t.Error("integration should be disabled after unauthorized response")
	}
	if integ.DisabledReason == "" {
		t.Error("disabled reason should be recorded")
	}
}

type staticTokenSource struct {
	token string
	err   error
}

func (s staticTokenSource) Token(ctx context.Context, userID string) (string, error) {
	return s.token, s.err
}

func TestSyncUnitDisablesOnDeadRefreshToken(t *testing.T) {
	units := newFakeUnits()
	repo := newFakeSyncRepo()
	_ = repo.UpsertIntegration(context.Background(), repository.UpsertIntegrationOptions{
		UserID: "user-1", CalendarID: "primary", SyncEnabled: true,
	})

	// The token manager reports the grant itself as dead; no calendar
	// call can ever be made again with these credentials.
	provider := NewClientProvider(repo, staticTokenSource{
		err: fmt.Errorf("refresh: %w", token.ErrRefreshRejected),
	})
	th := throttle.New(throttle.Config{InitialDelay: time.Millisecond})
	svc := NewService(units, repo, provider, th, pkgLog.NewNop(), time.UTC)

	unit := testUnit("inst-1", time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC))
	units.put(unit)

	err := svc.SyncUnit(context.Background(), "user-1", unit.Ref)
	if !errors.Is(err, ErrSyncDisabled) {
		t.Fatalf("err = %v, want ErrSyncDisabled", err)
	}

	integ, _ := repo.GetIntegration(context.Background(), "user-1")
	if integ.SyncEnabled {
		t.Error("integration should be disabled after a rejected refresh token")
	}
	if integ.DisabledReason == "" {
		t.Error("disabled reason should be recorded")
	}
}

func TestSyncUnitTimedEventUsesReferenceTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		t.Fatal(err)
	}

	units := newFakeUnits()
	repo := newFakeSyncRepo()
	client := newFakeClient()
	_ = repo.UpsertIntegration(context.Background(), repository.UpsertIntegrationOptions{
		UserID: "user-1", CalendarID: "primary", SyncEnabled: true,
	})
	th := throttle.New(throttle.Config{InitialDelay: time.Millisecond})
	svc := NewService(units, repo, &fakeProvider{client: client, repo: repo}, th, pkgLog.NewNop(), loc)

	at := time.Date(2026, 9, 7, 7, 30, 0, 0, time.UTC)
	unit := testUnit("inst-1", time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC))
	unit.ScheduledAt = &at
	units.put(unit)

	if err := svc.SyncUnit(context.Background(), "user-1", unit.Ref); err != nil {
		t.Fatal(err)
	}

	rec, _ := repo.GetSyncRecord(context.Background(), unit.Ref)
	req := client.events[rec.EventID]
	if req.AllDay {
		t.Fatal("scheduled unit must produce a timed event")
	}
	if req.Timezone != "Asia/Ho_Chi_Minh" {
		t.Errorf("timezone = %q", req.Timezone)
	}
	if req.StartTime.Hour() != 14 || req.StartTime.Minute() != 30 {
		t.Errorf("start = %v, want 14:30 local", req.StartTime)
	}
	if got := req.EndTime.Sub(req.StartTime); got != eventDuration {
		t.Errorf("duration = %v, want %v", got, eventDuration)
	}
}
