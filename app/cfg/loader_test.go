package cfg

import (
	"testing"
	"time"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}

	original := Version
	defer func() { Version = original }()

	Version = ""
	if GetVersion() != "unknown" {
		t.Errorf("Expected 'unknown' for empty version, got '%s'", GetVersion())
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load([]string{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.DBPath != "./data/tourney.db" {
		t.Errorf("Expected DB path './data/tourney.db', got '%s'", cfg.DBPath)
	}
	if cfg.WorkerCount != 3 {
		t.Errorf("Expected worker count 3, got %d", cfg.WorkerCount)
	}
	if cfg.SchedulerInterval != 60 {
		t.Errorf("Expected scheduler interval 60, got %d", cfg.SchedulerInterval)
	}
	if cfg.LookupDelay != time.Second {
		t.Errorf("Expected lookup delay 1s, got %v", cfg.LookupDelay)
	}
	if cfg.LookupMaxRetries != 3 {
		t.Errorf("Expected lookup retries 3, got %d", cfg.LookupMaxRetries)
	}
	if cfg.LookupTimeout != 10*time.Second {
		t.Errorf("Expected lookup timeout 10s, got %v", cfg.LookupTimeout)
	}
	if cfg.ForumBaseURL != "https://osu.ppy.sh" {
		t.Errorf("Expected forum base URL 'https://osu.ppy.sh', got '%s'", cfg.ForumBaseURL)
	}
	if cfg.Version == "" {
		t.Error("Expected version to be set")
	}
}

func TestLoad_Flags(t *testing.T) {
	cfg, err := load([]string{
		"--db-path", "/tmp/test.db",
		"--worker-count", "8",
		"--lookup-delay", "250",
		"--lookup-timeout", "3s",
		"--api-key", "secret",
		"--debug",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("Expected DB path '/tmp/test.db', got '%s'", cfg.DBPath)
	}
	if cfg.WorkerCount != 8 {
		t.Errorf("Expected worker count 8, got %d", cfg.WorkerCount)
	}
	if cfg.LookupDelay != 250*time.Millisecond {
		t.Errorf("Expected lookup delay 250ms, got %v", cfg.LookupDelay)
	}
	if cfg.LookupTimeout != 3*time.Second {
		t.Errorf("Expected lookup timeout 3s, got %v", cfg.LookupTimeout)
	}
	if cfg.APIAccessKey != "secret" {
		t.Errorf("Expected API key 'secret', got '%s'", cfg.APIAccessKey)
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := [][]string{
		{"--lookup-timeout", "soon"},
		{"--worker-count", "0"},
		{"--scheduler-interval", "-5"},
		{"--lookup-delay", "-1"},
		{"--timezone", "Nowhere/Invalid"},
	}

	for _, args := range tests {
		if _, err := load(args); err == nil {
			t.Errorf("Expected error for args %v", args)
		}
	}
}
