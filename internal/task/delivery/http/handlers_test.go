package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"taskmirror/internal/middleware"
	"taskmirror/internal/model"
	"taskmirror/internal/task"
	pkgLog "taskmirror/pkg/log"
)

type mockUseCase struct {
	task.UseCase

	createTask func(ctx context.Context, sc model.Scope, input task.CreateTaskInput) (task.TaskOutput, error)
	getTask    func(ctx context.Context, sc model.Scope, id string) (task.TaskDetailOutput, error)
	agenda     func(ctx context.Context, sc model.Scope, input task.AgendaInput) ([]model.SchedulableUnit, error)
}

func (m *mockUseCase) CreateTask(ctx context.Context, sc model.Scope, input task.CreateTaskInput) (task.TaskOutput, error) {
	return m.createTask(ctx, sc, input)
}

func (m *mockUseCase) GetTask(ctx context.Context, sc model.Scope, id string) (task.TaskDetailOutput, error) {
	return m.getTask(ctx, sc, id)
}

func (m *mockUseCase) Agenda(ctx context.Context, sc model.Scope, input task.AgendaInput) ([]model.SchedulableUnit, error) {
	return m.agenda(ctx, sc, input)
}

func newTestRouter(uc task.UseCase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	l := pkgLog.NewNop()
	mw := middleware.New(l, 0)
	RegisterRoutes(engine.Group("/api/v1"), New(l, uc), mw)
	return engine
}

func TestCreateTaskHandler(t *testing.T) {
	var gotScope model.Scope
	uc := &mockUseCase{
		createTask: func(ctx context.Context, sc model.Scope, input task.CreateTaskInput) (task.TaskOutput, error) {
			gotScope = sc
			return task.TaskOutput{Task: model.Task{
				ID:     "task-1",
				UserID: sc.UserID,
				Title:  input.Title,
				Status: model.TaskStatusPending,
			}}, nil
		},
	}
	router := newTestRouter(uc)

	body, _ := json.Marshal(map[string]any{
		"title": "Water plants",
		"recurrence": map[string]any{
			"frequency": "daily",
			"interval":  1,
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotScope.UserID != "user-1" {
		t.Errorf("scope user = %q, want user-1", gotScope.UserID)
	}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.ID != "task-1" {
		t.Errorf("id = %q", resp.Data.ID)
	}
}

func TestCreateTaskMonthlyByMonthDay(t *testing.T) {
	var gotInput task.CreateTaskInput
	uc := &mockUseCase{
		createTask: func(ctx context.Context, sc model.Scope, input task.CreateTaskInput) (task.TaskOutput, error) {
			gotInput = input
			return task.TaskOutput{Task: model.Task{
				ID:         "task-1",
				UserID:     sc.UserID,
				Title:      input.Title,
				Status:     model.TaskStatusPending,
				Recurrence: input.Recurrence,
			}}, nil
		},
	}
	router := newTestRouter(uc)

	body, _ := json.Marshal(map[string]any{
		"title": "Pay rent",
		"recurrence": map[string]any{
			"frequency":    "monthly",
			"interval":     1,
			"by_month_day": []int{15, 31},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotInput.Recurrence == nil {
		t.Fatal("recurrence not bound")
	}
	if got := gotInput.Recurrence.ByMonthDay; len(got) != 2 || got[0] != 15 || got[1] != 31 {
		t.Errorf("by_month_day = %v, want [15 31]", got)
	}

	var resp struct {
		Data struct {
			Recurrence struct {
				ByMonthDay []int `json:"by_month_day"`
			} `json:"recurrence"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if got := resp.Data.Recurrence.ByMonthDay; len(got) != 2 || got[0] != 15 || got[1] != 31 {
		t.Errorf("response by_month_day = %v, want [15 31]", got)
	}
}

func TestCreateTaskRequiresAuth(t *testing.T) {
	router := newTestRouter(&mockUseCase{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewReader([]byte(`{"title":"x"}`)))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestCreateTaskRejectsBadBody(t *testing.T) {
	router := newTestRouter(&mockUseCase{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewReader([]byte(`{"notes":"no title"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestDetailTaskNotFound(t *testing.T) {
	uc := &mockUseCase{
		getTask: func(ctx context.Context, sc model.Scope, id string) (task.TaskDetailOutput, error) {
			return task.TaskDetailOutput{}, task.ErrTaskNotFound
		},
	}
	router := newTestRouter(uc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/nope", nil)
	req.Header.Set("X-User-ID", "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAgendaHandler(t *testing.T) {
	at := time.Date(2026, 9, 7, 14, 30, 0, 0, time.UTC)
	uc := &mockUseCase{
		agenda: func(ctx context.Context, sc model.Scope, input task.AgendaInput) ([]model.SchedulableUnit, error) {
			return []model.SchedulableUnit{
				{
					Ref:         model.UnitRef{Kind: model.UnitKindInstance, ID: "inst-1"},
					UserID:      sc.UserID,
					Title:       "Water plants",
					Date:        time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
					ScheduledAt: &at,
					Status:      "pending",
				},
			}, nil
		},
	}
	router := newTestRouter(uc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/agenda?from=2026-09-07&to=2026-09-14", nil)
	req.Header.Set("X-User-ID", "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data []struct {
			Kind string `json:"kind"`
			Date string `json:"date"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Kind != "instance" || resp.Data[0].Date != "2026-09-07" {
		t.Errorf("unexpected agenda payload: %+v", resp.Data)
	}
}
