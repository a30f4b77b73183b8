package http

import (
	"github.com/gin-gonic/gin"

	"taskmirror/internal/middleware"
	"taskmirror/pkg/response"
)

// CreateTask godoc
// @Summary     Create a task
// @Description Creates a one-off or recurring task. Recurring tasks get their upcoming occurrences materialized immediately.
// @Tags        Tasks
// @Accept      json
// @Produce     json
// @Param       body body createTaskReq true "Task data"
// @Success     200 {object} response.Resp{data=taskResp}
// @Failure     400 {object} response.Resp "Bad Request"
// @Failure     500 {object} response.Resp "Internal Server Error"
// @Router      /api/v1/tasks [POST]
func (h *handler) CreateTask(c *gin.Context) {
	ctx := c.Request.Context()

	req, err := h.processCreateTaskReq(c)
	if err != nil {
		response.Error(c, err, nil)
		return
	}

	output, err := h.uc.CreateTask(ctx, middleware.ScopeFromContext(c), req.toInput())
	if err != nil {
		h.l.Errorf(ctx, "uc.CreateTask: %v", err)
		response.Error(c, h.mapError(err), nil)
		return
	}

	response.OK(c, newTaskResp(output.Task))
}

// ListTasks godoc
// @Summary     List tasks
// @Description Returns the caller's tasks with optional status and recurrence filters.
// @Tags        Tasks
// @Produce     json
// @Param       status         query string false "Filter by status (pending/archived)"
// @Param       recurring_only query bool   false "Only recurring tasks"
// @Success     200 {object} response.Resp{data=[]taskResp}
// @Failure     500 {object} response.Resp "Internal Server Error"
// @Router      /api/v1/tasks [GET]
func (h *handler) ListTasks(c *gin.Context) {
	ctx := c.Request.Context()

	req, err := h.processListTasksReq(c)
	if err != nil {
		response.Error(c, err, nil)
		return
	}

	output, err := h.uc.ListTasks(ctx, middleware.ScopeFromContext(c), req.toInput())
	if err != nil {
		h.l.Errorf(ctx, "uc.ListTasks: %v", err)
		response.Error(c, h.mapError(err), nil)
		return
	}

	resp := make([]taskResp, 0, len(output))
	for _, out := range output {
		resp = append(resp, newTaskResp(out.Task))
	}
	response.OK(c, resp)
}

// DetailTask godoc
// @Summary     Get task detail
// @Description Returns one task with its materialized occurrences.
// @Tags        Tasks
// @Produce     json
// @Param       id path string true "Task ID"
// @Success     200 {object} response.Resp{data=taskDetailResp}
// @Failure     404 {object} response.Resp "Not Found"
// @Router      /api/v1/tasks/{id} [GET]
func (h *handler) DetailTask(c *gin.Context) {
	ctx := c.Request.Context()

	id := c.Param("id")
	if id == "" {
		response.Error(c, errMissingID, nil)
		return
	}

	output, err := h.uc.GetTask(ctx, middleware.ScopeFromContext(c), id)
	if err != nil {
		h.l.Errorf(ctx, "uc.GetTask: %v", err)
		response.Error(c, h.mapError(err), nil)
		return
	}

	response.OK(c, newTaskDetailResp(output))
}

// UpdateTask godoc
// @Summary     Update a task
// @Description Partial update. Changing the recurrence rule re-materializes future pending occurrences; completed and skipped ones are preserved.
// @Tags        Tasks
// @Accept      json
// @Produce     json
// @Param       id   path string        true "Task ID"
// @Param       body body updateTaskReq true "Fields to update"
// @Success     200 {object} response.Resp{data=taskResp}
// @Failure     400 {object} response.Resp "Bad Request"
// @Failure     404 {object} response.Resp "Not Found"
// @Failure     409 {object} response.Resp "Conflict - task archived"
// @Router      /api/v1/tasks/{id} [PUT]
func (h *handler) UpdateTask(c *gin.Context) {
	ctx := c.Request.Context()

	req, err := h.processUpdateTaskReq(c)
	if err != nil {
		response.Error(c, err, nil)
		return
	}

	output, err := h.uc.UpdateTask(ctx, middleware.ScopeFromContext(c), req.toInput())
	if err != nil {
		h.l.Errorf(ctx, "uc.UpdateTask: %v", err)
		response.Error(c, h.mapError(err), nil)
		return
	}

	response.OK(c, newTaskResp(output.Task))
}

// ArchiveTask godoc
// @Summary     Archive a task
// @Description Hides the task and its occurrences from the agenda and the connected calendar. History is kept.
// @Tags        Tasks
// @Produce     json
// @Param       id path string true "Task ID"
// @Success     200 {object} response.Resp{data=taskResp}
// @Failure     404 {object} response.Resp "Not Found"
// @Router      /api/v1/tasks/{id}/archive [POST]
func (h *handler) ArchiveTask(c *gin.Context) {
	ctx := c.Request.Context()

	id := c.Param("id")
	if id == "" {
		response.Error(c, errMissingID, nil)
		return
	}

	output, err := h.uc.ArchiveTask(ctx, middleware.ScopeFromContext(c), id)
	if err != nil {
		h.l.Errorf(ctx, "uc.ArchiveTask: %v", err)
		response.Error(c, h.mapError(err), nil)
		return
	}

	response.OK(c, newTaskResp(output.Task))
}

// DeleteTask godoc
// @Summary     Delete a task
// @Description Removes the task, its occurrences, and their calendar events.
// @Tags        Tasks
// @Produce     json
// @Param       id path string true "Task ID"
// @Success     200 {object} response.Resp
// @Failure     404 {object} response.Resp "Not Found"
// @Router      /api/v1/tasks/{id} [DELETE]
func (h *handler) DeleteTask(c *gin.Context) {
	ctx := c.Request.Context()

	id := c.Param("id")
	if id == "" {
		response.Error(c, errMissingID, nil)
		return
	}

	if err := h.uc.DeleteTask(ctx, middleware.ScopeFromContext(c), id); err != nil {
		h.l.Errorf(ctx, "uc.DeleteTask: %v", err)
		response.Error(c, h.mapError(err), nil)
		return
	}

	response.OK(c, nil)
}

// CompleteInstance godoc
// @Summary     Complete an occurrence
// @Tags        Instances
// @Produce     json
// @Param       id path string true "Instance ID"
// @Success     200 {object} response.Resp{data=instanceResp}
// @Failure     404 {object} response.Resp "Not Found"
// @Router      /api/v1/instances/{id}/complete [POST]
func (h *handler) CompleteInstance(c *gin.Context) {
	h.setInstanceStatus(c, "complete")
}

// SkipInstance godoc
// @Summary     Skip an occurrence
// @Tags        Instances
// @Produce     json
// @Param       id path string true "Instance ID"
// @Success     200 {object} response.Resp{data=instanceResp}
// @Failure     404 {object} response.Resp "Not Found"
// @Router      /api/v1/instances/{id}/skip [POST]
func (h *handler) SkipInstance(c *gin.Context) {
	h.setInstanceStatus(c, "skip")
}

// ReopenInstance godoc
// @Summary     Reopen an occurrence
// @Description Returns a completed or skipped occurrence to pending.
// @Tags        Instances
// @Produce     json
// @Param       id path string true "Instance ID"
// @Success     200 {object} response.Resp{data=instanceResp}
// @Failure     404 {object} response.Resp "Not Found"
// @Router      /api/v1/instances/{id}/reopen [POST]
func (h *handler) ReopenInstance(c *gin.Context) {
	h.setInstanceStatus(c, "reopen")
}

func (h *handler) setInstanceStatus(c *gin.Context, action string) {
	ctx := c.Request.Context()

	id := c.Param("id")
	if id == "" {
		response.Error(c, errMissingID, nil)
		return
	}
	sc := middleware.ScopeFromContext(c)

	var err error
	switch action {
	case "complete":
		out, ucErr := h.uc.CompleteInstance(ctx, sc, id)
		if ucErr == nil {
			response.OK(c, newInstanceResp(out.Instance))
			return
		}
		err = ucErr
	case "skip":
		out, ucErr := h.uc.SkipInstance(ctx, sc, id)
		if ucErr == nil {
			response.OK(c, newInstanceResp(out.Instance))
			return
		}
		err = ucErr
	default:
		out, ucErr := h.uc.ReopenInstance(ctx, sc, id)
		if ucErr == nil {
			response.OK(c, newInstanceResp(out.Instance))
			return
		}
		err = ucErr
	}

	h.l.Errorf(ctx, "uc.%sInstance: %v", action, err)
	response.Error(c, h.mapError(err), nil)
}

// Agenda godoc
// @Summary     Agenda view
// @Description Flattened, date-ordered view of one-off tasks and occurrences within a date range. Defaults to the next 7 days.
// @Tags        Agenda
// @Produce     json
// @Param       from query string false "Range start (YYYY-MM-DD)"
// @Param       to   query string false "Range end (YYYY-MM-DD)"
// @Success     200 {object} response.Resp{data=[]agendaItemResp}
// @Failure     400 {object} response.Resp "Bad Request"
// @Router      /api/v1/agenda [GET]
func (h *handler) Agenda(c *gin.Context) {
	ctx := c.Request.Context()

	req, err := h.processAgendaReq(c)
	if err != nil {
		response.Error(c, err, nil)
		return
	}

	units, err := h.uc.Agenda(ctx, middleware.ScopeFromContext(c), req.toInput())
	if err != nil {
		h.l.Errorf(ctx, "uc.Agenda: %v", err)
		response.Error(c, h.mapError(err), nil)
		return
	}

	response.OK(c, newAgendaResp(units))
}

// GetSettings godoc
// @Summary     Calendar sync settings
// @Description Reports whether a calendar is connected and, if sync was disabled automatically, the reason.
// @Tags        Settings
// @Produce     json
// @Success     200 {object} response.Resp{data=settingsResp}
// @Router      /api/v1/settings/calendar [GET]
func (h *handler) GetSettings(c *gin.Context) {
	ctx := c.Request.Context()

	output, err := h.uc.GetSettings(ctx, middleware.ScopeFromContext(c))
	if err != nil {
		h.l.Errorf(ctx, "uc.GetSettings: %v", err)
		response.Error(c, h.mapError(err), nil)
		return
	}

	response.OK(c, newSettingsResp(output))
}

// ConnectCalendar godoc
// @Summary     Connect a calendar
// @Description Stores OAuth credentials obtained from the provider's consent flow and enables sync.
// @Tags        Settings
// @Accept      json
// @Produce     json
// @Param       body body connectCalendarReq true "OAuth credentials"
// @Success     200 {object} response.Resp
// @Failure     400 {object} response.Resp "Bad Request"
// @Router      /api/v1/settings/calendar [POST]
func (h *handler) ConnectCalendar(c *gin.Context) {
	ctx := c.Request.Context()

	req, err := h.processConnectCalendarReq(c)
	if err != nil {
		response.Error(c, err, nil)
		return
	}

	if err := h.uc.ConnectCalendar(ctx, middleware.ScopeFromContext(c), req.toInput()); err != nil {
		h.l.Errorf(ctx, "uc.ConnectCalendar: %v", err)
		response.Error(c, h.mapError(err), nil)
		return
	}

	response.OK(c, nil)
}

// DisconnectCalendar godoc
// @Summary     Disconnect the calendar
// @Description Disables sync. Existing calendar events are left in place.
// @Tags        Settings
// @Produce     json
// @Success     200 {object} response.Resp
// @Router      /api/v1/settings/calendar [DELETE]
func (h *handler) DisconnectCalendar(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.uc.DisconnectCalendar(ctx, middleware.ScopeFromContext(c)); err != nil {
		h.l.Errorf(ctx, "uc.DisconnectCalendar: %v", err)
		response.Error(c, h.mapError(err), nil)
		return
	}

	response.OK(c, nil)
}
