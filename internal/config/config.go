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
	Port             string
	FrontendURL      string
	DBPath           string
	LevelsPath       string
	GazeURL          string // WebSocket URL of the gaze service; "" disables gaze detection
	HistoryRetention time.Duration
	Trace            TraceConfig
}

// TraceConfig controls NDJSON tracing of gaze service messages.
type TraceConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("GAZE_TRACE_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8090"),
		FrontendURL:      getEnv("FRONTEND_URL", ""),
		DBPath:           getEnv("DB_PATH", "./data/focus.db"),
		LevelsPath:       getEnv("LEVELS_PATH", ""),
		GazeURL:          getEnv("GAZE_WS_URL", ""),
		HistoryRetention: getEnvDuration("HISTORY_RETENTION", 90*24*time.Hour),
		Trace: TraceConfig{
			Enabled:   getEnvBool("GAZE_TRACE_ENABLED", true),
			Dir:       getEnv("GAZE_TRACE_DIR", "./data/trace"),
			QueueSize: queueSize,
		},
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
	if c.Trace.Enabled && c.Trace.Dir == "" {
		return fmt.Errorf("GAZE_TRACE_DIR cannot be empty")
	}
	if c.Trace.QueueSize <= 0 {
		return fmt.Errorf("GAZE_TRACE_QUEUE_SIZE must be > 0")
	}
	if c.HistoryRetention < 0 {
		return fmt.Errorf("HISTORY_RETENTION cannot be negative")
	}
	return nil
}

// GazeEnabled returns true when a gaze service URL is configured.
func (c *Config) GazeEnabled() bool {
	return c.GazeURL != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
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

// getEnvDuration parses a Go duration string, such as "2160h" or "45m".
// A bare "0" disables the feature the duration controls.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "0" {
		return 0
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return fallback
	}
	return d
}
