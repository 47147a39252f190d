package config

import (
	"log/slog"
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Port)
	}
	if cfg.WorkerCount != 4 || cfg.MaxQueueSize != 100 {
		t.Errorf("unexpected pool settings %d/%d", cfg.WorkerCount, cfg.MaxQueueSize)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("expected 1h ttl, got %s", cfg.JobTTL)
	}
	if !cfg.PDFValidate {
		t.Error("expected PDF validation on by default")
	}
	if !reflect.DeepEqual(cfg.KeyLineItems, DefaultKeyLineItems) {
		t.Errorf("unexpected key line items %v", cfg.KeyLineItems)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("JOB_TTL", "15m")
	t.Setenv("PDF_VALIDATE", "false")
	t.Setenv("KEY_LINE_ITEMS", "Revenue, Gross Margin ,")
	t.Setenv("DB_PATH", "/tmp/guidex.db")

	cfg := Load()

	if cfg.Port != "9000" {
		t.Errorf("expected port 9000, got %q", cfg.Port)
	}
	if cfg.WorkerCount != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.WorkerCount)
	}
	if cfg.JobTTL != 15*time.Minute {
		t.Errorf("expected 15m ttl, got %s", cfg.JobTTL)
	}
	if cfg.PDFValidate {
		t.Error("expected PDF validation off")
	}
	if want := []string{"Revenue", "Gross Margin"}; !reflect.DeepEqual(cfg.KeyLineItems, want) {
		t.Errorf("expected %v, got %v", want, cfg.KeyLineItems)
	}
	if cfg.DBPath != "/tmp/guidex.db" {
		t.Errorf("unexpected db path %q", cfg.DBPath)
	}
}

func TestLoadClampsInvalidValues(t *testing.T) {
	t.Setenv("WORKER_COUNT", "-1")
	t.Setenv("MAX_QUEUE_SIZE", "0")

	cfg := Load()

	if cfg.WorkerCount != 4 || cfg.MaxQueueSize != 100 {
		t.Errorf("expected defaults, got %d/%d", cfg.WorkerCount, cfg.MaxQueueSize)
	}
}

func TestValidate(t *testing.T) {
	cfg := Load()
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing API_KEY to fail validation")
	}

	cfg.APIKey = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.LogLevel = "loud"
	if err := cfg.Validate(); err == nil {
		t.Error("expected invalid log level to fail validation")
	}
}

func TestLevel(t *testing.T) {
	l, err := Config{LogLevel: "debug"}.Level()
	if err != nil || l != slog.LevelDebug {
		t.Errorf("expected debug level, got %v (%v)", l, err)
	}
}
