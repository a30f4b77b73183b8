package http

import (
	"github.com/gin-gonic/gin"

	"taskmirror/internal/middleware"
)

// RegisterRoutes maps HTTP verbs and paths to Handler methods. All routes
// require an authenticated caller.
func RegisterRoutes(rg *gin.RouterGroup, h Handler, mw middleware.Middleware) {
	tasks := rg.Group("/tasks", mw.Auth(), mw.RateLimit())
	{
		tasks.POST("", h.CreateTask)
		tasks.GET("", h.ListTasks)
		tasks.GET("/:id", h.DetailTask)
		tasks.PUT("/:id", h.UpdateTask)
		tasks.POST("/:id/archive", h.ArchiveTask)
		tasks.DELETE("/:id", h.DeleteTask)
	}

	instances := rg.Group("/instances", mw.Auth(), mw.RateLimit())
	{
		instances.POST("/:id/complete", h.CompleteInstance)
		instances.POST("/:id/skip", h.SkipInstance)
		instances.POST("/:id/reopen", h.ReopenInstance)
	}

	rg.GET("/agenda", mw.Auth(), mw.RateLimit(), h.Agenda)

	settings := rg.Group("/settings/calendar", mw.Auth(), mw.RateLimit())
	{
		settings.GET("", h.GetSettings)
		settings.POST("", h.ConnectCalendar)
		settings.DELETE("", h.DisconnectCalendar)
	}
}
