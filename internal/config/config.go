package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for the taskrooms service.
// Environment variables are parsed from the TASKROOMS_ prefix.
type Config struct {
	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Storage driver: postgres or sqlite
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"taskrooms.db"`

	// Per-connection outbound buffer; a subscriber that falls this many
	// events behind is disconnected rather than allowed to stall fanout.
	SendBuffer int `envconfig:"SEND_BUFFER" default:"64"`
}

// ResolveDefaults validates the driver choice and its required settings.
func (c *Config) ResolveDefaults() error {
	switch c.DBDriver {
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("TASKROOMS_POSTGRES_DSN required for postgres driver")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("TASKROOMS_SQLITE_PATH required for sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("SEND_BUFFER must be positive, got %d", c.SendBuffer)
	}
	return nil
}

// New creates a Config by parsing environment variables.
// Example: TASKROOMS_HTTP_PORT, TASKROOMS_DB_DRIVER.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("TASKROOMS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("port", cfg.HTTPPort).
		Int("send_buffer", cfg.SendBuffer).
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
