package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server ServerConfig `mapstructure:"server" validate:"required"`
	Queue  QueueConfig  `mapstructure:"queue"  validate:"required"`
	Upload UploadConfig `mapstructure:"upload" validate:"required"`
}

// ServerConfig contains process-level settings.
type ServerConfig struct {
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// QueueConfig contains all job queue and worker pool settings.
type QueueConfig struct {
	// MaxPoolSize bounds the number of concurrently executing workers.
	// Zero means unbounded.
	MaxPoolSize int `mapstructure:"max_pool_size" validate:"gte=0"`

	// QueueCapacity bounds the backlog of work waiting for a worker once
	// MaxPoolSize is reached. Zero means unbounded.
	QueueCapacity int `mapstructure:"queue_capacity" validate:"gte=0"`

	// IdleTimeout is how long an idle worker lingers before exiting.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`

	// SweepInterval is the period of the retention sweep.
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`

	// ShutdownTimeout bounds how long shutdown waits for running workers.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// UploadConfig contains settings for the scratch storage used by import jobs.
type UploadConfig struct {
	Root string `mapstructure:"root" validate:"required"`
}
