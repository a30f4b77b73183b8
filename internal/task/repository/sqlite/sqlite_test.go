package sqlite_test

import (
	"context"
	"testing"
	"time"

	"taskmirror/internal/model"
	"taskmirror/internal/store"
	repo "taskmirror/internal/task/repository"
	"taskmirror/internal/task/repository/sqlite"
	pkgLog "taskmirror/pkg/log"
)

func newTestRepo(t *testing.T) repo.Repository {
	t.Helper()
	db, err := store.Open(context.Background(), store.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return sqlite.New(db, pkgLog.NewNop(), time.UTC)
}

func mustCreateTask(t *testing.T, r repo.Repository, opt repo.CreateTaskOptions) model.Task {
	t.Helper()
	task, err := r.CreateTask(context.Background(), opt)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestInsertInstancesUniquePerDate(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	task := mustCreateTask(t, r, repo.CreateTaskOptions{
		UserID: "u1", Title: "Water plants",
		Recurrence: &model.RecurrenceRule{Frequency: model.FrequencyDaily, Interval: 1},
		StartDate:  day(2026, 9, 1),
	})

	batch := []repo.InsertInstanceOptions{
		{TaskID: task.ID, OccurrenceDate: day(2026, 9, 1)},
		{TaskID: task.ID, OccurrenceDate: day(2026, 9, 2)},
	}
	n, err := r.InsertInstances(ctx, batch)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 inserts, got %d", n)
	}

	// Re-insert one duplicate plus one new: the duplicate is skipped, the
	// rest of the batch still commits.
	n, err = r.InsertInstances(ctx, []repo.InsertInstanceOptions{
		{TaskID: task.ID, OccurrenceDate: day(2026, 9, 1)},
		{TaskID: task.ID, OccurrenceDate: day(2026, 9, 3)},
	})
	if err != nil {
		t.Fatalf("re-insert: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 insert on conflict batch, got %d", n)
	}

	instances, err := r.ListInstances(ctx, repo.ListInstancesOptions{TaskID: task.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(instances) != 3 {
		t.Fatalf("expected 3 distinct instances, got %d", len(instances))
	}
	seen := map[string]bool{}
	for _, inst := range instances {
		key := inst.OccurrenceDate.Format("2006-01-02")
		if seen[key] {
			t.Fatalf("duplicate occurrence date %s", key)
		}
		seen[key] = true
	}
}

func TestRetentionNeverDeletesPending(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	task := mustCreateTask(t, r, repo.CreateTaskOptions{
		UserID: "u1", Title: "Old chores",
		Recurrence: &model.RecurrenceRule{Frequency: model.FrequencyDaily, Interval: 1},
	})

	old := day(2020, 1, 1)
	if _, err := r.InsertInstances(ctx, []repo.InsertInstanceOptions{
		{TaskID: task.ID, OccurrenceDate: old},
		{TaskID: task.ID, OccurrenceDate: old.AddDate(0, 0, 1)},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	instances, _ := r.ListInstances(ctx, repo.ListInstancesOptions{TaskID: task.ID})
	completedAt := time.Now()
	if _, err := r.UpdateInstanceStatus(ctx, repo.UpdateInstanceStatusOptions{
		ID: instances[0].ID, Status: model.InstanceStatusCompleted, CompletedAt: &completedAt,
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	deleted, err := r.DeleteStaleInstances(ctx, "u1", day(2026, 1, 1))
	if err != nil {
		t.Fatalf("retention: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected only the completed instance deleted, got %d", deleted)
	}

	remaining, _ := r.ListInstances(ctx, repo.ListInstancesOptions{TaskID: task.ID})
	if len(remaining) != 1 || remaining[0].Status != model.InstanceStatusPending {
		t.Fatalf("pending instance should survive retention, got %+v", remaining)
	}
}

func TestListSchedulableUnitsExcludesArchivedParents(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	active := mustCreateTask(t, r, repo.CreateTaskOptions{
		UserID: "u1", Title: "Active",
		Recurrence: &model.RecurrenceRule{Frequency: model.FrequencyDaily, Interval: 1},
	})
	archived := mustCreateTask(t, r, repo.CreateTaskOptions{
		UserID: "u1", Title: "Archived",
		Recurrence: &model.RecurrenceRule{Frequency: model.FrequencyDaily, Interval: 1},
	})

	target := day(2026, 9, 10)
	for _, id := range []string{active.ID, archived.ID} {
		if _, err := r.InsertInstances(ctx, []repo.InsertInstanceOptions{
			{TaskID: id, OccurrenceDate: target},
		}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	st := model.TaskStatusArchived
	if _, err := r.UpdateTask(ctx, repo.UpdateTaskOptions{ID: archived.ID, UserID: "u1", Status: &st}); err != nil {
		t.Fatalf("archive: %v", err)
	}

	units, err := r.ListSchedulableUnits(ctx, repo.ListUnitsOptions{
		UserID: "u1", From: target, To: target,
	})
	if err != nil {
		t.Fatalf("list units: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	if units[0].Title != "Active" {
		t.Fatalf("archived parent's instance leaked into the view: %+v", units[0])
	}
}

func TestListSchedulableUnitsIncludesOneOffTasks(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	target := day(2026, 9, 10)
	mustCreateTask(t, r, repo.CreateTaskOptions{
		UserID: "u1", Title: "Dentist", ScheduledOn: target, DefaultTime: "14:00",
	})
	// Outside range.
	mustCreateTask(t, r, repo.CreateTaskOptions{
		UserID: "u1", Title: "Later", ScheduledOn: target.AddDate(0, 1, 0),
	})

	units, err := r.ListSchedulableUnits(ctx, repo.ListUnitsOptions{UserID: "u1", From: target, To: target})
	if err != nil {
		t.Fatalf("list units: %v", err)
	}
	if len(units) != 1 || units[0].Title != "Dentist" {
		t.Fatalf("unexpected units: %+v", units)
	}
	if units[0].Ref.Kind != model.UnitKindTask {
		t.Fatalf("expected task unit, got %s", units[0].Ref.Kind)
	}
}

func TestOneOffUnitScheduledAtUsesReferenceLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		t.Fatal(err)
	}

	db, err := store.Open(context.Background(), store.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	r := sqlite.New(db, pkgLog.NewNop(), loc)

	ctx := context.Background()
	target := day(2026, 9, 10)
	task := mustCreateTask(t, r, repo.CreateTaskOptions{
		UserID: "u1", Title: "Dentist", ScheduledOn: target, DefaultTime: "14:30",
	})

	unit, err := r.GetUnit(ctx, model.UnitRef{Kind: model.UnitKindTask, ID: task.ID})
	if err != nil {
		t.Fatalf("get unit: %v", err)
	}
	if unit.ScheduledAt == nil {
		t.Fatal("expected a scheduled datetime")
	}
	want := time.Date(2026, 9, 10, 14, 30, 0, 0, loc)
	if !unit.ScheduledAt.Equal(want) {
		t.Errorf("scheduled_at = %v, want %v", unit.ScheduledAt, want)
	}
}

func TestDeleteFuturePendingInstancesKeepsHistory(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	task := mustCreateTask(t, r, repo.CreateTaskOptions{
		UserID: "u1", Title: "Routine",
		Recurrence: &model.RecurrenceRule{Frequency: model.FrequencyDaily, Interval: 1},
	})
	if _, err := r.InsertInstances(ctx, []repo.InsertInstanceOptions{
		{TaskID: task.ID, OccurrenceDate: day(2026, 9, 1)},
		{TaskID: task.ID, OccurrenceDate: day(2026, 9, 5)},
		{TaskID: task.ID, OccurrenceDate: day(2026, 9, 10)},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	instances, _ := r.ListInstances(ctx, repo.ListInstancesOptions{TaskID: task.ID})
	done := time.Now()
	if _, err := r.UpdateInstanceStatus(ctx, repo.UpdateInstanceStatusOptions{
		ID: instances[1].ID, Status: model.InstanceStatusCompleted, CompletedAt: &done,
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	n, err := r.DeleteFuturePendingInstances(ctx, task.ID, day(2026, 9, 5))
	if err != nil {
		t.Fatalf("delete future: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 future pending deleted, got %d", n)
	}
	remaining, _ := r.ListInstances(ctx, repo.ListInstancesOptions{TaskID: task.ID})
	if len(remaining) != 2 {
		t.Fatalf("expected completed + past pending to remain, got %d", len(remaining))
	}
}

func TestListUnitsCreatedSince(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Minute)
	created := mustCreateTask(t, r, repo.CreateTaskOptions{
		UserID: "u1", Title: "New", ScheduledOn: day(2026, 9, 10),
	})

	refs, err := r.ListUnitsCreatedSince(ctx, "u1", before)
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(refs) != 1 || refs[0].ID != created.ID {
		t.Fatalf("expected the new task ref, got %+v", refs)
	}

	refs, err = r.ListUnitsCreatedSince(ctx, "u1", time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("list since future: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected no refs for a future cutoff, got %+v", refs)
	}
}

func TestDeleteTaskCascadesInstances(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	task := mustCreateTask(t, r, repo.CreateTaskOptions{
		UserID: "u1", Title: "Doomed",
		Recurrence: &model.RecurrenceRule{Frequency: model.FrequencyDaily, Interval: 1},
	})
	if _, err := r.InsertInstances(ctx, []repo.InsertInstanceOptions{
		{TaskID: task.ID, OccurrenceDate: day(2026, 9, 1)},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := r.DeleteTask(ctx, "u1", task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	instances, _ := r.ListInstances(ctx, repo.ListInstancesOptions{TaskID: task.ID})
	if len(instances) != 0 {
		t.Fatalf("instances survived task deletion: %+v", instances)
	}
}
