package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ----------------------------
	// Database
	// ----------------------------
	// A postgres:// or postgresql:// URL selects Postgres, anything else is a SQLite path.
	DatabaseURL string `envconfig:"DATABASE_URL" default:"pulsemail.db"`

	// ----------------------------
	// Delivery
	// ----------------------------
	WorkerCount   int `envconfig:"WORKER_COUNT" default:"2"`
	QueueSize     int `envconfig:"QUEUE_SIZE" default:"100"`
	RateLimit     int `envconfig:"RATE_LIMIT" default:"10"`
	RetryAttempts int `envconfig:"RETRY_ATTEMPTS" default:"3"`

	// ----------------------------
	// Scheduler
	// ----------------------------
	// IANA zone used to interpret schedule times. Empty means host local time.
	Timezone string `envconfig:"SCHEDULER_TIMEZONE" default:""`

	// ----------------------------
	// Inbox monitor
	// ----------------------------
	InboxEnabled      bool          `envconfig:"INBOX_ENABLED" default:"false"`
	InboxPollInterval time.Duration `envconfig:"INBOX_POLL_INTERVAL" default:"60s"`
	AttachmentsDir    string        `envconfig:"ATTACHMENTS_DIR" default:"attachments"`

	// ----------------------------
	// Credentials
	// ----------------------------
	KeyringBackend  string `envconfig:"KEYRING_BACKEND" default:"file"`
	KeyringDir      string `envconfig:"KEYRING_DIR" default:"~/.config/pulsemail/credentials"`
	KeyringPassword string `envconfig:"KEYRING_PASSWORD"`

	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort string `envconfig:"API_PORT" default:"8080"`

	// ----------------------------
	// Metrics
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	// ----------------------------
	// Logging
	// ----------------------------
	LogDev bool `envconfig:"LOG_DEV" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.WorkerCount <= 0 {
		return nil, fmt.Errorf("WORKER_COUNT must be positive, got %d", cfg.WorkerCount)
	}
	if cfg.RateLimit <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT must be positive, got %d", cfg.RateLimit)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location resolves the scheduler timezone.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_TIMEZONE %q: %w", tz, err)
	}
	return loc, nil
}

// Postgres reports whether DatabaseURL points at a Postgres server.
func (c *Config) Postgres() bool {
	u := strings.ToLower(c.DatabaseURL)
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}
