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
	if got := GetVersion(); got != "unknown" {
		t.Errorf("Expected 'unknown' for empty version, got '%s'", got)
	}
}

func TestLoadArgsDefaults(t *testing.T) {
	cfg, err := LoadArgs([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DBPath != "./signal-comb.db" {
		t.Errorf("Expected default db path, got '%s'", cfg.DBPath)
	}
	if cfg.SourcesDir != "./sources" {
		t.Errorf("Expected sources dir './sources', got '%s'", cfg.SourcesDir)
	}
	if cfg.Mode != ModeServe {
		t.Errorf("Expected mode '%s', got '%s'", ModeServe, cfg.Mode)
	}
	if cfg.SchedulerInterval != 900*time.Second {
		t.Errorf("Expected interval 15m, got %v", cfg.SchedulerInterval)
	}
	if cfg.AdapterConcurrency != 1 {
		t.Errorf("Expected adapter concurrency 1, got %d", cfg.AdapterConcurrency)
	}
	if cfg.RecordTrustHistory {
		t.Error("Expected trust history recording to be off by default")
	}
	if cfg.LogFormat != "text" {
		t.Errorf("Expected log format 'text', got '%s'", cfg.LogFormat)
	}
	if Get() != cfg {
		t.Error("Expected Get to return the loaded configuration")
	}
}

func TestLoadArgsFlagsAndEnv(t *testing.T) {
	t.Setenv("API_ACCESS_KEY", "env-key")
	t.Setenv("WORKER_COUNT", "7")

	cfg, err := LoadArgs([]string{
		"--mode", "ingest",
		"--db-path", "/tmp/test.db",
		"--scheduler-interval", "60",
		"--adapter-concurrency", "3",
		"--record-trust-history",
		"--log-format", "json",
	})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Mode != ModeIngest {
		t.Errorf("Expected mode '%s', got '%s'", ModeIngest, cfg.Mode)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("Expected db path '/tmp/test.db', got '%s'", cfg.DBPath)
	}
	if cfg.SchedulerInterval != time.Minute {
		t.Errorf("Expected interval 1m, got %v", cfg.SchedulerInterval)
	}
	if cfg.AdapterConcurrency != 3 {
		t.Errorf("Expected adapter concurrency 3, got %d", cfg.AdapterConcurrency)
	}
	if !cfg.RecordTrustHistory {
		t.Error("Expected trust history recording to be enabled")
	}
	if cfg.APIAccessKey != "env-key" {
		t.Errorf("Expected API key from env, got '%s'", cfg.APIAccessKey)
	}
	if cfg.WorkerCount != 7 {
		t.Errorf("Expected worker count 7 from env, got %d", cfg.WorkerCount)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("Expected log format 'json', got '%s'", cfg.LogFormat)
	}
}

func TestLoadArgsRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown mode", []string{"--mode", "stream"}},
		{"zero workers", []string{"--worker-count", "0"}},
		{"zero interval", []string{"--scheduler-interval", "0"}},
		{"zero concurrency", []string{"--adapter-concurrency", "0"}},
		{"unknown log format", []string{"--log-format", "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadArgs(tt.args); err == nil {
				t.Errorf("Expected error for %v", tt.args)
			}
		})
	}
}
