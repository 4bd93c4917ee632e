package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	SRS      SRSConfig      `mapstructure:"srs" validate:"required"`
	Schedule ScheduleConfig `mapstructure:"schedule" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	// Driver selects the backend: "postgres" (pgx) or "sqlite3".
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite3"`
	// URL is a postgres connection URL or a sqlite file path/DSN.
	URL          string `mapstructure:"url" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
	// AutoMigrate applies pending migrations when the server starts.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// SRSConfig contains the decay model settings.
type SRSConfig struct {
	IntervalLadderDays []int `mapstructure:"interval_ladder_days" validate:"required,min=1,dive,gt=0"`
}

// ScheduleConfig contains the review schedule builder settings.
type ScheduleConfig struct {
	WarmupSize      int   `mapstructure:"warmup_size" validate:"gte=0"`
	SubLessonSize   int   `mapstructure:"sub_lesson_size" validate:"gte=2"`
	ReviewIntervals []int `mapstructure:"review_intervals" validate:"required,min=1,dive,gt=0"`
	// RefreshInterval is how often cached schedules are rebuilt. Zero disables
	// the background refresh.
	RefreshInterval time.Duration `mapstructure:"refresh_interval" validate:"gte=0"`
}
