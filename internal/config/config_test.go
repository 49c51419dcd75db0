package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Port != "8090" {
		t.Errorf("Expected port 8090, got %s", cfg.Port)
	}
	if cfg.DBPath != "./data/focus.db" {
		t.Errorf("Expected default DB path, got %s", cfg.DBPath)
	}
	if cfg.GazeEnabled() {
		t.Error("Expected gaze disabled without GAZE_WS_URL")
	}
	if cfg.HistoryRetention != 90*24*time.Hour {
		t.Errorf("Expected 90 day retention, got %s", cfg.HistoryRetention)
	}
	if !cfg.Trace.Enabled || cfg.Trace.QueueSize != 1000 {
		t.Errorf("Unexpected trace defaults: %+v", cfg.Trace)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("GAZE_WS_URL", "ws://localhost:8765/ws")
	t.Setenv("HISTORY_RETENTION", "720h")
	t.Setenv("GAZE_TRACE_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Expected port 9000, got %s", cfg.Port)
	}
	if !cfg.GazeEnabled() {
		t.Error("Expected gaze enabled")
	}
	if cfg.HistoryRetention != 720*time.Hour {
		t.Errorf("Expected 720h retention, got %s", cfg.HistoryRetention)
	}
	if cfg.Trace.Enabled {
		t.Error("Expected tracing disabled")
	}
}

func TestRetentionZeroDisables(t *testing.T) {
	t.Setenv("HISTORY_RETENTION", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.HistoryRetention != 0 {
		t.Errorf("Expected retention disabled, got %s", cfg.HistoryRetention)
	}
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("HISTORY_RETENTION", "ninety days")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.HistoryRetention != 90*24*time.Hour {
		t.Errorf("Expected fallback retention, got %s", cfg.HistoryRetention)
	}
}

func TestIsDevelopment(t *testing.T) {
	cases := []struct {
		frontendURL string
		want        bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:5173", true},
		{"https://focus.example.com", false},
	}

	for _, tc := range cases {
		cfg := &Config{FrontendURL: tc.frontendURL}
		if got := cfg.IsDevelopment(); got != tc.want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", tc.frontendURL, got, tc.want)
		}
	}
}
