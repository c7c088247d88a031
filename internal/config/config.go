// Package config centralizes configuration for the sync core, loaded
// from environment variables with validation and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the sync core.
type Config struct {
	// Local store
	DataDir string

	// Remote service
	RemoteBaseURL string
	RemoteAPIKey  string
	RemoteTimeout time.Duration

	// Scheduler
	DrainInterval   time.Duration
	MaintenanceSpec string
	PrefetchSpec    string
	CaregiverID     string
	PrefetchDays    int

	// Status feed
	FeedAddr string

	// Logging
	LogLevel string
}

// Load reads configuration from the environment, after merging in a
// .env file when one exists next to the working directory.
func Load() (*Config, error) {
	// Missing .env is fine; explicit env vars always win.
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:         getEnv("CAREBRIDGE_DATA_DIR", defaultDataDir()),
		RemoteBaseURL:   getEnv("CAREBRIDGE_REMOTE_URL", ""),
		RemoteAPIKey:    os.Getenv("CAREBRIDGE_REMOTE_API_KEY"),
		RemoteTimeout:   getEnvDuration("CAREBRIDGE_REMOTE_TIMEOUT", 30*time.Second),
		DrainInterval:   getEnvDuration("CAREBRIDGE_DRAIN_INTERVAL", 1*time.Minute),
		MaintenanceSpec: getEnv("CAREBRIDGE_MAINTENANCE_SPEC", "0 3 * * *"),
		PrefetchSpec:    getEnv("CAREBRIDGE_PREFETCH_SPEC", ""),
		CaregiverID:     os.Getenv("CAREBRIDGE_CAREGIVER_ID"),
		PrefetchDays:    getEnvInt("CAREBRIDGE_PREFETCH_DAYS", 7),
		FeedAddr:        getEnv("CAREBRIDGE_FEED_ADDR", "127.0.0.1:8095"),
		LogLevel:        getEnv("CAREBRIDGE_LOG_LEVEL", "info"),
	}

	return cfg, cfg.Validate()
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("CAREBRIDGE_DATA_DIR must not be empty")
	}
	if c.PrefetchDays < 1 || c.PrefetchDays > 60 {
		return fmt.Errorf("CAREBRIDGE_PREFETCH_DAYS must be 1-60, got %d", c.PrefetchDays)
	}
	if c.DrainInterval < time.Second {
		return fmt.Errorf("CAREBRIDGE_DRAIN_INTERVAL must be at least 1s, got %s", c.DrainInterval)
	}
	if c.PrefetchSpec != "" && c.CaregiverID == "" {
		return fmt.Errorf("CAREBRIDGE_PREFETCH_SPEC requires CAREBRIDGE_CAREGIVER_ID")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("CAREBRIDGE_LOG_LEVEL must be debug/info/warn/error, got %q", c.LogLevel)
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".carebridge"
	}
	return filepath.Join(home, ".carebridge")
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
