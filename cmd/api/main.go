package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendarAPI "google.golang.org/api/calendar/v3"

	"taskmirror/config"
	_ "taskmirror/docs" // Swagger docs
	"taskmirror/internal/calsync"
	syncsqlite "taskmirror/internal/calsync/repository/sqlite"
	"taskmirror/internal/httpserver"
	"taskmirror/internal/middleware"
	"taskmirror/internal/recurrence"
	"taskmirror/internal/scheduler"
	"taskmirror/internal/store"
	taskHTTP "taskmirror/internal/task/delivery/http"
	tasksqlite "taskmirror/internal/task/repository/sqlite"
	"taskmirror/internal/task/usecase"
	"taskmirror/internal/token"
	"taskmirror/pkg/log"
	"taskmirror/pkg/throttle"
)

// @title       TaskMirror API
// @description Personal task scheduling with recurrence materialization and two-way Google Calendar sync.
// @version     1
// @host        localhost:8080
// @schemes     http
func main() {
	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Failed to load config: ", err)
		return
	}

	// 2. Logger
	logger := log.Init(log.ZapConfig{
		Level:        cfg.Logger.Level,
		Mode:         cfg.Logger.Mode,
		Encoding:     cfg.Logger.Encoding,
		ColorEnabled: cfg.Logger.ColorEnabled,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "Starting TaskMirror...")
	logger.Infof(ctx, "Environment: %s", cfg.Environment.Name)
	logger.Infof(ctx, "Database: %s", cfg.Database.Path)

	// 3. Reference timezone for rendered event times
	loc, err := time.LoadLocation(cfg.Scheduler.ReferenceTimezone)
	if err != nil {
		logger.Warnf(ctx, "Invalid timezone %q, falling back to UTC: %v", cfg.Scheduler.ReferenceTimezone, err)
		loc = time.UTC
	}

	// 4. Storage
	db, err := store.Open(ctx, store.Config{
		Path:        cfg.Database.Path,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		logger.Error(ctx, "Failed to open database: ", err)
		return
	}
	defer db.Close()

	taskRepo := tasksqlite.New(db, logger, loc)
	syncRepo := syncsqlite.New(db, logger)

	// 5. Recurrence engine
	engine := recurrence.NewEngine(taskRepo, logger, loc)

	// 6. Calendar sync pipeline
	th := throttle.New(throttle.Config{
		InitialDelay:      cfg.Throttle.InitialDelay,
		MaxDelay:          cfg.Throttle.MaxDelay,
		RecoveryThreshold: cfg.Throttle.RecoveryThreshold,
		FloorRate:         cfg.Throttle.FloorRate,
		FloorBurst:        cfg.Throttle.FloorBurst,
	})

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GoogleCalendar.ClientID,
		ClientSecret: cfg.GoogleCalendar.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{calendarAPI.CalendarEventsScope},
	}
	tokenManager := token.NewManager(syncRepo, token.NewOAuthRefresher(oauthCfg), logger)

	provider := calsync.NewClientProvider(syncRepo, tokenManager)
	syncService := calsync.NewService(taskRepo, syncRepo, provider, th, logger, loc)

	trigger := calsync.NewTrigger(syncService, logger, calsync.TriggerConfig{
		Workers:      cfg.Sync.Workers,
		QueueSize:    cfg.Sync.QueueSize,
		MaxRetries:   cfg.Sync.MaxRetries,
		RetryBackoff: cfg.Sync.RetryBackoff,
		JobTimeout:   cfg.Sync.JobTimeout,
	})
	trigger.Start()
	defer trigger.Stop()

	reconciler := calsync.NewReconciler(syncService, taskRepo, syncRepo, logger, calsync.ReconcilerConfig{
		PastDays:   cfg.Sync.SweepPastDays,
		FutureDays: cfg.Sync.SweepFutureDays,
	})

	// 7. Background cycle
	sched := scheduler.New(engine, reconciler, taskRepo, syncRepo, logger, scheduler.Config{
		CronSpec:      cfg.Scheduler.CronSpec,
		HorizonDays:   cfg.Scheduler.HorizonDays,
		RetentionDays: cfg.Scheduler.RetentionDays,
		UserTimeout:   cfg.Scheduler.UserTimeout,
	})
	if err := sched.Start(ctx); err != nil {
		logger.Error(ctx, "Failed to start scheduler: ", err)
		return
	}
	defer sched.Stop()

	// 8. Task domain
	taskUC := usecase.New(logger, taskRepo, syncRepo, engine, trigger, cfg.Scheduler.HorizonDays)
	taskHandler := taskHTTP.New(logger, taskUC)
	mw := middleware.New(logger, cfg.HTTPServer.RateLimitPerMin)

	// 9. HTTP Server
	httpServer, err := httpserver.New(logger, httpserver.Config{
		Port:        cfg.HTTPServer.Port,
		Mode:        cfg.HTTPServer.Mode,
		Environment: cfg.Environment.Name,
		TaskHandler: taskHandler,
		Middleware:  mw,
	})
	if err != nil {
		logger.Error(ctx, "Failed to initialize HTTP server: ", err)
		return
	}

	// 10. Run
	if err := httpServer.Run(ctx); err != nil {
		logger.Error(ctx, "Failed to run server: ", err)
		return
	}

	logger.Info(ctx, "Server stopped gracefully")
}
