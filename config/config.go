package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service configuration.
type Config struct {
	// Environment
	Environment EnvironmentConfig

	// Server
	HTTPServer HTTPServerConfig
	Logger     LoggerConfig

	// Storage
	Database DatabaseConfig

	// Task mirroring specifics
	Scheduler      SchedulerConfig
	Sync           SyncConfig
	Throttle       ThrottleConfig
	GoogleCalendar GoogleCalendarConfig
}

type EnvironmentConfig struct {
	Name string
}

type HTTPServerConfig struct {
	Port int
	Mode string

	// RateLimitPerMin is the per-user API request budget.
	RateLimitPerMin int
}

type LoggerConfig struct {
	Level        string
	Mode         string
	Encoding     string
	ColorEnabled bool
}

type DatabaseConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// SchedulerConfig drives the background materialization and sweep cycle.
type SchedulerConfig struct {
	CronSpec      string
	HorizonDays   int
	RetentionDays int
	UserTimeout   time.Duration

	// ReferenceTimezone is the fixed location used to render scheduled
	// datetimes from occurrence date plus default time.
	ReferenceTimezone string
}

// SyncConfig drives the fire-and-forget trigger pool and the sweep window.
type SyncConfig struct {
	Workers      int
	QueueSize    int
	MaxRetries   int
	RetryBackoff time.Duration
	JobTimeout   time.Duration

	SweepPastDays   int
	SweepFutureDays int
}

// ThrottleConfig shapes the adaptive governor in front of the calendar API.
type ThrottleConfig struct {
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	RecoveryThreshold int
	FloorRate         float64
	FloorBurst        int
}

type GoogleCalendarConfig struct {
	ClientID     string
	ClientSecret string
}

// Load loads configuration using Viper.
// Config file name: config.yaml — searched in ./config, ., /etc/app/
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/app/")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}

	// Environment & Server
	cfg.Environment.Name = viper.GetString("environment.name")
	cfg.HTTPServer.Port = viper.GetInt("http_server.port")
	cfg.HTTPServer.Mode = viper.GetString("http_server.mode")
	cfg.HTTPServer.RateLimitPerMin = viper.GetInt("http_server.rate_limit_per_min")
	cfg.Logger.Level = viper.GetString("logger.level")
	cfg.Logger.Mode = viper.GetString("logger.mode")
	cfg.Logger.Encoding = viper.GetString("logger.encoding")
	cfg.Logger.ColorEnabled = viper.GetBool("logger.color_enabled")

	// Storage
	cfg.Database.Path = viper.GetString("database.path")
	cfg.Database.BusyTimeout = viper.GetDuration("database.busy_timeout")
	if dbPath := viper.GetString("database_path"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	// Scheduler
	cfg.Scheduler.CronSpec = viper.GetString("scheduler.cron_spec")
	cfg.Scheduler.HorizonDays = viper.GetInt("scheduler.horizon_days")
	cfg.Scheduler.RetentionDays = viper.GetInt("scheduler.retention_days")
	cfg.Scheduler.UserTimeout = viper.GetDuration("scheduler.user_timeout")
	cfg.Scheduler.ReferenceTimezone = viper.GetString("scheduler.reference_timezone")

	// Sync
	cfg.Sync.Workers = viper.GetInt("sync.workers")
	cfg.Sync.QueueSize = viper.GetInt("sync.queue_size")
	cfg.Sync.MaxRetries = viper.GetInt("sync.max_retries")
	cfg.Sync.RetryBackoff = viper.GetDuration("sync.retry_backoff")
	cfg.Sync.JobTimeout = viper.GetDuration("sync.job_timeout")
	cfg.Sync.SweepPastDays = viper.GetInt("sync.sweep_past_days")
	cfg.Sync.SweepFutureDays = viper.GetInt("sync.sweep_future_days")

	// Throttle
	cfg.Throttle.InitialDelay = viper.GetDuration("throttle.initial_delay")
	cfg.Throttle.MaxDelay = viper.GetDuration("throttle.max_delay")
	cfg.Throttle.RecoveryThreshold = viper.GetInt("throttle.recovery_threshold")
	cfg.Throttle.FloorRate = viper.GetFloat64("throttle.floor_rate")
	cfg.Throttle.FloorBurst = viper.GetInt("throttle.floor_burst")

	// Google Calendar OAuth app credentials
	cfg.GoogleCalendar.ClientID = viper.GetString("google_calendar.client_id")
	cfg.GoogleCalendar.ClientSecret = viper.GetString("google_calendar.client_secret")
	if clientID := viper.GetString("google_calendar_client_id"); clientID != "" {
		cfg.GoogleCalendar.ClientID = clientID
	}
	if clientSecret := viper.GetString("google_calendar_client_secret"); clientSecret != "" {
		cfg.GoogleCalendar.ClientSecret = clientSecret
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("environment.name", "development")
	viper.SetDefault("http_server.port", 8080)
	viper.SetDefault("http_server.mode", "debug")
	viper.SetDefault("http_server.rate_limit_per_min", 120)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.mode", "development")
	viper.SetDefault("logger.encoding", "console")
	viper.SetDefault("logger.color_enabled", true)

	viper.SetDefault("database.path", "data/taskmirror.db")
	viper.SetDefault("database.busy_timeout", "5s")

	viper.SetDefault("scheduler.cron_spec", "0 * * * *")
	viper.SetDefault("scheduler.horizon_days", 60)
	viper.SetDefault("scheduler.retention_days", 30)
	viper.SetDefault("scheduler.user_timeout", "2m")
	viper.SetDefault("scheduler.reference_timezone", "Asia/Ho_Chi_Minh")

	viper.SetDefault("sync.workers", 4)
	viper.SetDefault("sync.queue_size", 256)
	viper.SetDefault("sync.max_retries", 3)
	viper.SetDefault("sync.retry_backoff", "2s")
	viper.SetDefault("sync.job_timeout", "30s")
	viper.SetDefault("sync.sweep_past_days", 7)
	viper.SetDefault("sync.sweep_future_days", 60)

	viper.SetDefault("throttle.initial_delay", "500ms")
	viper.SetDefault("throttle.max_delay", "60s")
	viper.SetDefault("throttle.recovery_threshold", 5)
	viper.SetDefault("throttle.floor_rate", 5.0)
	viper.SetDefault("throttle.floor_burst", 2)
}
