// Package config loads process configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full process configuration for the flowkeep server.
type Config struct {
	// Host and Port the HTTP API binds to.
	Host string `env:"FLOWKEEP_HOST" envDefault:"127.0.0.1"`
	Port int    `env:"FLOWKEEP_PORT" envDefault:"8080"`

	// DatabasePath is the SQLite database file. The containing directory
	// must exist.
	DatabasePath string `env:"FLOWKEEP_DB" envDefault:"flowkeep.db"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"FLOWKEEP_LOG_LEVEL" envDefault:"info"`
	// LogJSON switches log output from human-readable text to JSON lines.
	LogJSON bool `env:"FLOWKEEP_LOG_JSON" envDefault:"false"`

	// RequestTimeoutSeconds is the per-request deadline enforced at the
	// HTTP boundary. Running executions are not cancelled by it.
	RequestTimeoutSeconds int `env:"FLOWKEEP_REQUEST_TIMEOUT" envDefault:"30"`

	// SweepOrphans enables the startup pass that marks executions left in
	// RUNNING by a previous process crash as FAILED.
	SweepOrphans bool `env:"FLOWKEEP_SWEEP_ORPHANS" envDefault:"true"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment config: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("FLOWKEEP_PORT %d out of range", cfg.Port)
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		return Config{}, fmt.Errorf("FLOWKEEP_REQUEST_TIMEOUT must be positive")
	}
	return cfg, nil
}

// RequestTimeout returns the per-request deadline as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Addr returns the host:port the server binds to.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
