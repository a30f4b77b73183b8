package calsync

import (
	"context"
	"testing"
	"time"

	"taskmirror/internal/calsync/repository"
	"taskmirror/internal/model"
	"taskmirror/pkg/gcalendar"
	pkgLog "taskmirror/pkg/log"
)

func testEventRequest(summary string) gcalendar.EventRequest {
	return gcalendar.EventRequest{CalendarID: "primary", Summary: summary, AllDay: true}
}

func newTestReconciler(t *testing.T, fixedNow time.Time) (*Reconciler, *fakeUnits, *fakeSyncRepo, *fakeClient) {
	t.Helper()

	svc, units, repo, client := newTestService(t)
	svc.now = func() time.Time { return fixedNow }

	rec := NewReconciler(svc, units, repo, pkgLog.NewNop(), ReconcilerConfig{PastDays: 7, FutureDays: 60})
	rec.now = func() time.Time { return fixedNow }
	return rec, units, repo, client
}

func TestSweepSyncsMissingAndDrifted(t *testing.T) {
	fixedNow := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	rec, units, repo, client := newTestReconciler(t, fixedNow)
	ctx := context.Background()

	// Never synced.
	missing := testUnit("inst-missing", fixedNow.AddDate(0, 0, 1))
	units.put(missing)

	// Synced but edited since.
	drifted := testUnit("inst-drifted", fixedNow.AddDate(0, 0, 2))
	units.put(drifted)
	stale := drifted
	stale.Title = "old title"
	if _, err := repo.CreateSyncRecord(ctx, repository.CreateSyncRecordOptions{
		UserID:      "user-1",
		Ref:         drifted.Ref,
		EventID:     "evt-stale",
		Fingerprint: unitFingerprint(stale),
	}); err != nil {
		t.Fatal(err)
	}
	// In sync already; must not be touched.
	settled := testUnit("inst-settled", fixedNow.AddDate(0, 0, 3))
	units.put(settled)
	if _, err := repo.CreateSyncRecord(ctx, repository.CreateSyncRecordOptions{
		UserID:      "user-1",
		Ref:         settled.Ref,
		EventID:     "evt-settled",
		Fingerprint: unitFingerprint(settled),
	}); err != nil {
		t.Fatal(err)
	}

	sum, err := rec.SweepUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("SweepUser: %v", err)
	}

	if sum.Synced != 2 {
		t.Errorf("synced = %d, want 2", sum.Synced)
	}
	if client.inserts != 2 {
		t.Errorf("inserts = %d, want 2 (missing + recreated drifted)", client.inserts)
	}

	got, _ := repo.GetSyncRecord(ctx, drifted.Ref)
	if got.Fingerprint != unitFingerprint(drifted) {
		t.Error("drifted record fingerprint not advanced")
	}
}

func TestSweepRemovesOrphanRecords(t *testing.T) {
	fixedNow := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	rec, _, repo, client := newTestReconciler(t, fixedNow)
	ctx := context.Background()

	orphanRef := model.UnitRef{Kind: model.UnitKindInstance, ID: "inst-gone"}
	if _, err := repo.CreateSyncRecord(ctx, repository.CreateSyncRecordOptions{
		UserID:      "user-1",
		Ref:         orphanRef,
		EventID:     "evt-orphan",
		Fingerprint: "whatever",
	}); err != nil {
		t.Fatal(err)
	}
	client.events["evt-orphan"] = testEventRequest("gone task")

	sum, err := rec.SweepUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("SweepUser: %v", err)
	}

	if sum.Orphaned != 1 {
		t.Errorf("orphaned = %d, want 1", sum.Orphaned)
	}
	if client.eventCount() != 0 {
		t.Errorf("event count = %d, want 0", client.eventCount())
	}
	got, _ := repo.GetSyncRecord(ctx, orphanRef)
	if got.ID != "" {
		t.Error("orphan record should be deleted")
	}
}

func TestSweepSparesUnitsCreatedMidSweep(t *testing.T) {
	fixedNow := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	rec, units, repo, client := newTestReconciler(t, fixedNow)
	ctx := context.Background()

	// A unit created after the sweep snapshot would begin: its record was
	// written by the trigger, but the unit sits outside list results here.
	// The created-since guard must keep its event alive.
	fresh := testUnit("inst-fresh", fixedNow.AddDate(0, 1, 0).AddDate(0, 0, 30))
	fresh.CreatedAt = fixedNow.Add(time.Second)
	units.put(fresh)
	if _, err := repo.CreateSyncRecord(ctx, repository.CreateSyncRecordOptions{
		UserID:      "user-1",
		Ref:         fresh.Ref,
		EventID:     "evt-fresh",
		Fingerprint: unitFingerprint(fresh),
	}); err != nil {
		t.Fatal(err)
	}
	client.events["evt-fresh"] = testEventRequest(fresh.Title)

	sum, err := rec.SweepUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("SweepUser: %v", err)
	}

	if sum.Orphaned != 0 {
		t.Errorf("orphaned = %d, want 0", sum.Orphaned)
	}
	if client.eventCount() != 1 {
		t.Error("fresh unit's event must survive the sweep")
	}
}

func TestSweepSkipsRecordsOutsideWindow(t *testing.T) {
	fixedNow := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	rec, units, repo, client := newTestReconciler(t, fixedNow)
	ctx := context.Background()

	// Exists but is dated beyond the sweep window: not an orphan.
	far := testUnit("inst-far", fixedNow.AddDate(1, 0, 0))
	units.put(far)
	if _, err := repo.CreateSyncRecord(ctx, repository.CreateSyncRecordOptions{
		UserID:      "user-1",
		Ref:         far.Ref,
		EventID:     "evt-far",
		Fingerprint: unitFingerprint(far),
	}); err != nil {
		t.Fatal(err)
	}
	client.events["evt-far"] = testEventRequest(far.Title)

	sum, err := rec.SweepUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("SweepUser: %v", err)
	}

	if sum.Orphaned != 0 {
		t.Errorf("orphaned = %d, want 0", sum.Orphaned)
	}
	if client.eventCount() != 1 {
		t.Error("out-of-window unit's event must survive the sweep")
	}
}
