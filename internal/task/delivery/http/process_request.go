package http

import (
	"errors"

	"github.com/gin-gonic/gin"
)

var errMissingID = errors.New("id is required")

// processCreateTaskReq binds and validates the create task request body.
func (h *handler) processCreateTaskReq(c *gin.Context) (createTaskReq, error) {
	var req createTaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return req, err
	}
	return req, req.validate()
}

// processListTasksReq binds the list query parameters.
func (h *handler) processListTasksReq(c *gin.Context) (listTasksReq, error) {
	var req listTasksReq
	if err := c.ShouldBindQuery(&req); err != nil {
		return req, err
	}
	return req, req.validate()
}

// processUpdateTaskReq binds the update body plus the URI param.
func (h *handler) processUpdateTaskReq(c *gin.Context) (updateTaskReq, error) {
	var req updateTaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return req, err
	}
	req.ID = c.Param("id")
	if req.ID == "" {
		return req, errMissingID
	}
	return req, req.validate()
}

// processAgendaReq binds the agenda range query parameters.
func (h *handler) processAgendaReq(c *gin.Context) (agendaReq, error) {
	var req agendaReq
	if err := c.ShouldBindQuery(&req); err != nil {
		return req, err
	}
	return req, req.validate()
}

// processConnectCalendarReq binds and validates the calendar connection body.
func (h *handler) processConnectCalendarReq(c *gin.Context) (connectCalendarReq, error) {
	var req connectCalendarReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return req, err
	}
	return req, req.validate()
}
