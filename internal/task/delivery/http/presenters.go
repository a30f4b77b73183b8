package http

import (
	"time"

	"taskmirror/internal/model"
	"taskmirror/internal/task"
	"taskmirror/pkg/response"
)

// --- Request DTOs ---

type recurrenceReq struct {
	Frequency  string `json:"frequency"    binding:"required,oneof=daily weekly monthly"`
	Interval   int    `json:"interval"     binding:"required,min=1"`
	ByWeekday  []int  `json:"by_weekday"   binding:"omitempty,dive,min=0,max=6"`
	ByMonthDay []int  `json:"by_month_day" binding:"omitempty,dive,min=1,max=31"`
	Count      int    `json:"count"        binding:"omitempty,min=1"`
	Until      string `json:"until"        binding:"omitempty,datetime=2006-01-02"`
}

func (r recurrenceReq) toModel() *model.RecurrenceRule {
	rule := &model.RecurrenceRule{
		Frequency:  model.Frequency(r.Frequency),
		Interval:   r.Interval,
		ByWeekday:  r.ByWeekday,
		ByMonthDay: r.ByMonthDay,
		Count:      r.Count,
	}
	if r.Until != "" {
		until, _ := time.Parse(response.DateFormat, r.Until)
		rule.Until = &until
	}
	return rule
}

type createTaskReq struct {
	Title       string         `json:"title"        binding:"required,min=1,max=255"`
	Notes       string         `json:"notes"        binding:"max=4000"`
	ScheduledOn string         `json:"scheduled_on" binding:"omitempty,datetime=2006-01-02"`
	DefaultTime string         `json:"default_time" binding:"omitempty"`
	StartDate   string         `json:"start_date"   binding:"omitempty,datetime=2006-01-02"`
	Recurrence  *recurrenceReq `json:"recurrence"`
}

func (r createTaskReq) validate() error { return nil }

func (r createTaskReq) toInput() task.CreateTaskInput {
	input := task.CreateTaskInput{
		Title:       r.Title,
		Notes:       r.Notes,
		DefaultTime: r.DefaultTime,
	}
	if r.ScheduledOn != "" {
		input.ScheduledOn, _ = time.Parse(response.DateFormat, r.ScheduledOn)
	}
	if r.StartDate != "" {
		input.StartDate, _ = time.Parse(response.DateFormat, r.StartDate)
	}
	if r.Recurrence != nil {
		input.Recurrence = r.Recurrence.toModel()
	}
	return input
}

type listTasksReq struct {
	Status        string `form:"status"         binding:"omitempty,oneof=pending archived"`
	RecurringOnly bool   `form:"recurring_only"`
}

func (r listTasksReq) validate() error { return nil }

func (r listTasksReq) toInput() task.ListTasksInput {
	return task.ListTasksInput{
		Status:        model.TaskStatus(r.Status),
		RecurringOnly: r.RecurringOnly,
	}
}

type updateTaskReq struct {
	ID              string         `json:"-"` // populated from URI param
	Title           *string        `json:"title"            binding:"omitempty,min=1,max=255"`
	Notes           *string        `json:"notes"            binding:"omitempty,max=4000"`
	ScheduledOn     *string        `json:"scheduled_on"     binding:"omitempty,datetime=2006-01-02"`
	DefaultTime     *string        `json:"default_time"`
	Recurrence      *recurrenceReq `json:"recurrence"`
	ClearRecurrence bool           `json:"clear_recurrence"`
}

func (r updateTaskReq) validate() error { return nil }

func (r updateTaskReq) toInput() task.UpdateTaskInput {
	input := task.UpdateTaskInput{
		ID:              r.ID,
		Title:           r.Title,
		Notes:           r.Notes,
		DefaultTime:     r.DefaultTime,
		ClearRecurrence: r.ClearRecurrence,
	}
	if r.ScheduledOn != nil && *r.ScheduledOn != "" {
		on, _ := time.Parse(response.DateFormat, *r.ScheduledOn)
		input.ScheduledOn = &on
	}
	if r.Recurrence != nil {
		input.Recurrence = r.Recurrence.toModel()
	}
	return input
}

type agendaReq struct {
	From string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To   string `form:"to"   binding:"omitempty,datetime=2006-01-02"`
}

func (r agendaReq) validate() error { return nil }

func (r agendaReq) toInput() task.AgendaInput {
	var input task.AgendaInput
	if r.From != "" {
		input.From, _ = time.Parse(response.DateFormat, r.From)
	}
	if r.To != "" {
		input.To, _ = time.Parse(response.DateFormat, r.To)
	}
	return input
}

type connectCalendarReq struct {
	CalendarID   string `json:"calendar_id"`
	AccessToken  string `json:"access_token"  binding:"required"`
	RefreshToken string `json:"refresh_token" binding:"required"`
	TokenExpiry  string `json:"token_expiry"  binding:"omitempty"`
}

func (r connectCalendarReq) validate() error { return nil }

func (r connectCalendarReq) toInput() task.ConnectCalendarInput {
	input := task.ConnectCalendarInput{
		CalendarID:   r.CalendarID,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
	}
	if r.TokenExpiry != "" {
		input.TokenExpiry, _ = time.Parse(time.RFC3339, r.TokenExpiry)
	}
	return input
}

// --- Response DTOs ---

type recurrenceResp struct {
	Frequency  string `json:"frequency"`
	Interval   int    `json:"interval"`
	ByWeekday  []int  `json:"by_weekday,omitempty"`
	ByMonthDay []int  `json:"by_month_day,omitempty"`
	Count      int    `json:"count,omitempty"`
	Until      string `json:"until,omitempty"`
}

type taskResp struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Notes       string          `json:"notes,omitempty"`
	ScheduledOn string          `json:"scheduled_on,omitempty"`
	DefaultTime string          `json:"default_time,omitempty"`
	Status      string          `json:"status"`
	Recurrence  *recurrenceResp `json:"recurrence,omitempty"`
	StartDate   string          `json:"start_date,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type instanceResp struct {
	ID             string     `json:"id"`
	TaskID         string     `json:"task_id"`
	OccurrenceDate string     `json:"occurrence_date"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	Status         string     `json:"status"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

type taskDetailResp struct {
	Task      taskResp       `json:"task"`
	Instances []instanceResp `json:"instances"`
}

type agendaItemResp struct {
	Kind        string     `json:"kind"`
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Notes       string     `json:"notes,omitempty"`
	Date        string     `json:"date"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Status      string     `json:"status"`
}

type settingsResp struct {
	Connected      bool   `json:"connected"`
	SyncEnabled    bool   `json:"sync_enabled"`
	DisabledReason string `json:"disabled_reason,omitempty"`
	CalendarID     string `json:"calendar_id,omitempty"`
}

func newTaskResp(t model.Task) taskResp {
	resp := taskResp{
		ID:          t.ID,
		Title:       t.Title,
		Notes:       t.Notes,
		DefaultTime: t.DefaultTime,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if !t.ScheduledOn.IsZero() {
		resp.ScheduledOn = t.ScheduledOn.Format(response.DateFormat)
	}
	if !t.StartDate.IsZero() {
		resp.StartDate = t.StartDate.Format(response.DateFormat)
	}
	if t.Recurrence != nil {
		resp.Recurrence = &recurrenceResp{
			Frequency:  string(t.Recurrence.Frequency),
			Interval:   t.Recurrence.Interval,
			ByWeekday:  t.Recurrence.ByWeekday,
			ByMonthDay: t.Recurrence.ByMonthDay,
			Count:      t.Recurrence.Count,
		}
		if t.Recurrence.Until != nil {
			resp.Recurrence.Until = t.Recurrence.Until.Format(response.DateFormat)
		}
	}
	return resp
}

func newInstanceResp(inst model.TaskInstance) instanceResp {
	return instanceResp{
		ID:             inst.ID,
		TaskID:         inst.TaskID,
		OccurrenceDate: inst.OccurrenceDate.Format(response.DateFormat),
		ScheduledAt:    inst.ScheduledAt,
		Status:         string(inst.Status),
		CompletedAt:    inst.CompletedAt,
	}
}

func newTaskDetailResp(out task.TaskDetailOutput) taskDetailResp {
	resp := taskDetailResp{
		Task:      newTaskResp(out.Task),
		Instances: make([]instanceResp, 0, len(out.Instances)),
	}
	for _, inst := range out.Instances {
		resp.Instances = append(resp.Instances, newInstanceResp(inst))
	}
	return resp
}

func newAgendaResp(units []model.SchedulableUnit) []agendaItemResp {
	out := make([]agendaItemResp, 0, len(units))
	for _, u := range units {
		out = append(out, agendaItemResp{
			Kind:        string(u.Ref.Kind),
			ID:          u.Ref.ID,
			Title:       u.Title,
			Notes:       u.Notes,
			Date:        u.Date.Format(response.DateFormat),
			ScheduledAt: u.ScheduledAt,
			Status:      u.Status,
		})
	}
	return out
}

func newSettingsResp(out task.SettingsOutput) settingsResp {
	return settingsResp{
		Connected:      out.Connected,
		SyncEnabled:    out.SyncEnabled,
		DisabledReason: out.DisabledReason,
		CalendarID:     out.CalendarID,
	}
}
