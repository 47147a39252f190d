package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Extraction
	TemplatesPath      string
	RetainIntermediate bool
	PDFValidate        bool
	KeyLineItems       []string

	// Result store; empty disables persistence.
	DBPath string

	LogLevel string
}

// DefaultKeyLineItems are the line items kept by the key guidance extract.
var DefaultKeyLineItems = []string{"Capital Expenditure", "Cash Flow", "Earnings"}

// Load reads configuration from the environment.
func Load() Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("port", "8090")
	v.SetDefault("api_key", "")
	v.SetDefault("worker_count", 4)
	v.SetDefault("max_queue_size", 100)
	v.SetDefault("max_upload_bytes", 52428800) // 50MB
	v.SetDefault("job_ttl", "1h")
	v.SetDefault("templates_path", "")
	v.SetDefault("retain_intermediate", false)
	v.SetDefault("pdf_validate", true)
	v.SetDefault("key_line_items", strings.Join(DefaultKeyLineItems, ","))
	v.SetDefault("db_path", "")
	v.SetDefault("log_level", "info")

	cfg := Config{
		Port:               v.GetString("port"),
		APIKey:             v.GetString("api_key"),
		WorkerCount:        v.GetInt("worker_count"),
		MaxQueueSize:       v.GetInt("max_queue_size"),
		MaxUploadBytes:     v.GetInt64("max_upload_bytes"),
		JobTTL:             v.GetDuration("job_ttl"),
		TemplatesPath:      v.GetString("templates_path"),
		RetainIntermediate: v.GetBool("retain_intermediate"),
		PDFValidate:        v.GetBool("pdf_validate"),
		KeyLineItems:       SplitList(v.GetString("key_line_items")),
		DBPath:             v.GetString("db_path"),
		LogLevel:           v.GetString("log_level"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
}

// SplitList splits a comma-separated setting, dropping empty entries. Line
// item names contain spaces, so whitespace is not a separator.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
