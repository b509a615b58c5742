package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_WithDefaults(t *testing.T) {
	// Load config without a config file (use defaults)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}

	// Verify some default values
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}

	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 30s", cfg.Server.ReadTimeout)
	}

	if cfg.Ingestion.MaxPayloadSize != 65536 {
		t.Errorf("Ingestion.MaxPayloadSize = %d, want 65536", cfg.Ingestion.MaxPayloadSize)
	}

	if cfg.Ingestion.SourceTag != "manual_signal" {
		t.Errorf("Ingestion.SourceTag = %q, want %q", cfg.Ingestion.SourceTag, "manual_signal")
	}

	if cfg.Ingestion.RateLimitEnabled {
		t.Error("Ingestion.RateLimitEnabled should be false by default")
	}

	if cfg.Buffer.Capacity != 10000 {
		t.Errorf("Buffer.Capacity = %d, want 10000", cfg.Buffer.Capacity)
	}

	if cfg.Buffer.BatchSize != 100 {
		t.Errorf("Buffer.BatchSize = %d, want 100", cfg.Buffer.BatchSize)
	}

	if cfg.Buffer.BatchInterval != 2*time.Second {
		t.Errorf("Buffer.BatchInterval = %v, want 2s", cfg.Buffer.BatchInterval)
	}

	if cfg.Sink.URL != "http://localhost:9000" {
		t.Errorf("Sink.URL = %q, want %q", cfg.Sink.URL, "http://localhost:9000")
	}

	if cfg.Sink.Table != "events" {
		t.Errorf("Sink.Table = %q, want %q", cfg.Sink.Table, "events")
	}

	if cfg.Sink.MaxAttempts != 3 {
		t.Errorf("Sink.MaxAttempts = %d, want 3", cfg.Sink.MaxAttempts)
	}

	if cfg.Sink.BackoffFactor != 2.0 {
		t.Errorf("Sink.BackoffFactor = %v, want 2.0", cfg.Sink.BackoffFactor)
	}

	if cfg.QuestDB.RetentionDays != 7 {
		t.Errorf("QuestDB.RetentionDays = %d, want 7", cfg.QuestDB.RetentionDays)
	}

	if cfg.QuestDB.SweepInterval != 24*time.Hour {
		t.Errorf("QuestDB.SweepInterval = %v, want 24h", cfg.QuestDB.SweepInterval)
	}

	if cfg.Failure.Backend != "log" {
		t.Errorf("Failure.Backend = %q, want %q", cfg.Failure.Backend, "log")
	}

	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Errorf("Redis.URL = %q, want %q", cfg.Redis.URL, "redis://localhost:6379/0")
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}

	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_WithConfigFile(t *testing.T) {
	content := `
server:
  port: 9191
ingestion:
  max_payload_size: 1024
  source_tag: probe
buffer:
  capacity: 50
  batch_size: 5
sink:
  url: http://questdb:9000
  max_attempts: 5
failure:
  backend: jetstream
  nats_url: nats://nats:4222
logging:
  level: debug
  format: text
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want 9191", cfg.Server.Port)
	}

	if cfg.Ingestion.MaxPayloadSize != 1024 {
		t.Errorf("Ingestion.MaxPayloadSize = %d, want 1024", cfg.Ingestion.MaxPayloadSize)
	}

	if cfg.Ingestion.SourceTag != "probe" {
		t.Errorf("Ingestion.SourceTag = %q, want probe", cfg.Ingestion.SourceTag)
	}

	if cfg.Buffer.Capacity != 50 {
		t.Errorf("Buffer.Capacity = %d, want 50", cfg.Buffer.Capacity)
	}

	if cfg.Sink.URL != "http://questdb:9000" {
		t.Errorf("Sink.URL = %q, want http://questdb:9000", cfg.Sink.URL)
	}

	if cfg.Sink.MaxAttempts != 5 {
		t.Errorf("Sink.MaxAttempts = %d, want 5", cfg.Sink.MaxAttempts)
	}

	if cfg.Failure.Backend != "jetstream" {
		t.Errorf("Failure.Backend = %q, want jetstream", cfg.Failure.Backend)
	}

	// Unset fields keep their defaults.
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 30s default", cfg.Server.ReadTimeout)
	}

	if cfg.Sink.Table != "events" {
		t.Errorf("Sink.Table = %q, want events default", cfg.Sink.Table)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() with explicit missing file should error")
	}
}
