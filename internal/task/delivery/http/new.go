package http

import (
	"github.com/gin-gonic/gin"

	"taskmirror/internal/task"
	"taskmirror/pkg/log"
)

// Handler is the public interface for the task HTTP delivery layer.
type Handler interface {
	CreateTask(c *gin.Context)
	ListTasks(c *gin.Context)
	DetailTask(c *gin.Context)
	UpdateTask(c *gin.Context)
	ArchiveTask(c *gin.Context)
	DeleteTask(c *gin.Context)

	CompleteInstance(c *gin.Context)
	SkipInstance(c *gin.Context)
	ReopenInstance(c *gin.Context)

	Agenda(c *gin.Context)

	GetSettings(c *gin.Context)
	ConnectCalendar(c *gin.Context)
	DisconnectCalendar(c *gin.Context)
}

type handler struct {
	l  log.Logger
	uc task.UseCase
}

// New creates a new HTTP handler for the task domain.
func New(l log.Logger, uc task.UseCase) Handler {
	return &handler{
		l:  l,
		uc: uc,
	}
}
