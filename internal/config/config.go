// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port     string
	DBPath   string
	DeviceDB string // whatsmeow device/session database

	AdminJID string // user id allowed to run privileged commands

	SessionTimeout time.Duration // idle window before a conversation resets to the menu
	MaxInvalid     int           // invalid answers per step before output is suppressed
	NonNumericCap  int           // consecutive chatty messages before human handoff

	TrialCooldown time.Duration
	PanelURL      string // provisioning panel endpoint for trial credentials
	PanelTimeout  time.Duration

	MaxWorkers     int
	ScraperIdleTTL time.Duration
	DefaultIdleTTL time.Duration
	FixturesURL    string
	ChromiumPath   string

	Supervisor SupervisorConfig

	MediaDir string
}

// SupervisorConfig controls the resilience supervisor.
type SupervisorConfig struct {
	PollInterval     time.Duration
	SilenceFloor     time.Duration // minimum quiet time before a Suspect trigger is considered
	PendingThreshold int           // received-responded gap, before the human-handoff allowance
	RestartCeiling   int           // soft restarts per rolling hour before giving up
	SuspendCooldown  time.Duration // monitoring pause after a restart
	TeardownTimeout  time.Duration
	PreventiveHour   int // local hour for the daily unconditional restart
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		DBPath:   getEnv("DB_PATH", "./data/atendebot.db"),
		DeviceDB: getEnv("DEVICE_DB_PATH", "./data/device.db"),

		AdminJID: getEnv("ADMIN_JID", ""),

		SessionTimeout: getEnvDuration("SESSION_TIMEOUT", 12*time.Hour),
		MaxInvalid:     getEnvInt("MAX_INVALID", 3),
		NonNumericCap:  getEnvInt("NON_NUMERIC_CAP", 3),

		TrialCooldown: getEnvDuration("TRIAL_COOLDOWN", 30*24*time.Hour),
		PanelURL:      getEnv("PANEL_URL", ""),
		PanelTimeout:  getEnvDuration("PANEL_TIMEOUT", 20*time.Second),

		MaxWorkers:     getEnvInt("MAX_WORKERS", 2),
		ScraperIdleTTL: getEnvDuration("SCRAPER_IDLE_TTL", 30*time.Minute),
		DefaultIdleTTL: getEnvDuration("DEFAULT_IDLE_TTL", 2*time.Hour),
		FixturesURL:    getEnv("FIXTURES_URL", "https://trivela.com.br/onde-assistir/futebol-ao-vivo-os-jogos-de-hoje-na-tv/"),
		ChromiumPath:   getEnv("CHROMIUM_PATH", ""),

		Supervisor: SupervisorConfig{
			PollInterval:     getEnvDuration("SUPERVISOR_POLL_INTERVAL", 2*time.Minute),
			SilenceFloor:     getEnvDuration("SUPERVISOR_SILENCE_FLOOR", 20*time.Minute),
			PendingThreshold: getEnvInt("SUPERVISOR_PENDING_THRESHOLD", 5),
			RestartCeiling:   getEnvInt("SUPERVISOR_RESTART_CEILING", 3),
			SuspendCooldown:  getEnvDuration("SUPERVISOR_SUSPEND_COOLDOWN", 10*time.Minute),
			TeardownTimeout:  getEnvDuration("SUPERVISOR_TEARDOWN_TIMEOUT", 10*time.Second),
			PreventiveHour:   getEnvInt("SUPERVISOR_PREVENTIVE_HOUR", 4),
		},

		MediaDir: getEnv("MEDIA_DIR", "./assets"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.DeviceDB == "" {
		return fmt.Errorf("DEVICE_DB_PATH cannot be empty")
	}
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be > 0")
	}
	if c.TrialCooldown <= 0 {
		return fmt.Errorf("TRIAL_COOLDOWN must be > 0")
	}
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("MAX_WORKERS must be > 0")
	}
	if c.MaxInvalid <= 0 {
		return fmt.Errorf("MAX_INVALID must be > 0")
	}
	if c.NonNumericCap <= 0 {
		return fmt.Errorf("NON_NUMERIC_CAP must be > 0")
	}
	if c.Supervisor.PollInterval <= 0 {
		return fmt.Errorf("SUPERVISOR_POLL_INTERVAL must be > 0")
	}
	if c.Supervisor.PreventiveHour < 0 || c.Supervisor.PreventiveHour > 23 {
		return fmt.Errorf("SUPERVISOR_PREVENTIVE_HOUR must be between 0 and 23")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
