package config

import (
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/nexus")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.QueueName != "categorize:jobs" {
		t.Errorf("QueueName = %q, want categorize:jobs", cfg.QueueName)
	}
	if cfg.QueueDriver != "redis" {
		t.Errorf("QueueDriver = %q, want redis", cfg.QueueDriver)
	}
	if cfg.WorkerConcurrency != 10 {
		t.Errorf("WorkerConcurrency = %d, want 10", cfg.WorkerConcurrency)
	}
	if cfg.ScanWorkers != 8 {
		t.Errorf("ScanWorkers = %d, want 8", cfg.ScanWorkers)
	}
	if cfg.AnalysisTimeout != 120000 {
		t.Errorf("AnalysisTimeout = %d, want 120000", cfg.AnalysisTimeout)
	}
	if !cfg.QdrantEnabled {
		t.Error("QdrantEnabled should default to true")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/nexus")
	t.Setenv("QUEUE_DRIVER", "asynq")
	t.Setenv("SCAN_WORKERS", "16")
	t.Setenv("QDRANT_ENABLED", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.QueueDriver != "asynq" {
		t.Errorf("QueueDriver = %q, want asynq", cfg.QueueDriver)
	}
	if cfg.ScanWorkers != 16 {
		t.Errorf("ScanWorkers = %d, want 16", cfg.ScanWorkers)
	}
	if cfg.QdrantEnabled {
		t.Error("QdrantEnabled should be false")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		return &Config{
			RedisURL:          "redis://localhost:6379",
			DatabaseURL:       "postgres://localhost/nexus",
			QueueDriver:       "redis",
			WorkerConcurrency: 10,
			ScanWorkers:       8,
			MaxFileSize:       1048576,
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("Valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing redis", func(c *Config) { c.RedisURL = "" }},
		{"missing database", func(c *Config) { c.DatabaseURL = "" }},
		{"bad queue driver", func(c *Config) { c.QueueDriver = "kafka" }},
		{"zero concurrency", func(c *Config) { c.WorkerConcurrency = 0 }},
		{"excessive concurrency", func(c *Config) { c.WorkerConcurrency = 500 }},
		{"zero scan workers", func(c *Config) { c.ScanWorkers = 0 }},
		{"tiny max file size", func(c *Config) { c.MaxFileSize = 10 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}
