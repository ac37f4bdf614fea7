// Package config loads service configuration from ZPRAVODAJ_*
// environment variables. The CLI does not use it; flags cover the
// one-shot path.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/whereissushi/zpravodaj-api/convert"
	"github.com/whereissushi/zpravodaj-api/observability"
)

// Config holds the settings shared by the HTTP service and the queue
// worker.
type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string

	// DatabaseURL enables conversion bookkeeping when set. An empty
	// value runs the service without persistence.
	DatabaseURL string

	// RedisURL locates the task queue broker.
	RedisURL string

	// UploadBaseURL enables publishing finished bundles when set.
	UploadBaseURL string
	UploadToken   string

	// Account is the default publishing account.
	Account string

	// OutputDir receives bundles when no upload target is configured.
	OutputDir string

	// Conversion profile.
	DPI           float64
	Quality       int
	Languages     []string
	MinConfidence float64
	Workers       int

	// QueueConcurrency bounds parallel queue jobs per worker process.
	QueueConcurrency int

	// MaxUploadBytes bounds the accepted request body size.
	MaxUploadBytes int64

	// ConvertTimeout bounds one conversion end to end.
	ConvertTimeout time.Duration

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:       getEnvOrDefault("ZPRAVODAJ_LISTEN_ADDR", ":8080"),
		DatabaseURL:      getEnvOrDefault("ZPRAVODAJ_DATABASE_URL", ""),
		RedisURL:         getEnvOrDefault("ZPRAVODAJ_REDIS_URL", "redis://localhost:6379"),
		UploadBaseURL:    getEnvOrDefault("ZPRAVODAJ_UPLOAD_URL", ""),
		UploadToken:      getEnvOrDefault("ZPRAVODAJ_UPLOAD_TOKEN", ""),
		Account:          getEnvOrDefault("ZPRAVODAJ_ACCOUNT", "default"),
		OutputDir:        getEnvOrDefault("ZPRAVODAJ_OUTPUT_DIR", "out"),
		DPI:              getEnvAsFloatOrDefault("ZPRAVODAJ_DPI", 150),
		Quality:          getEnvAsIntOrDefault("ZPRAVODAJ_QUALITY", 85),
		Languages:        splitList(getEnvOrDefault("ZPRAVODAJ_LANGUAGES", "ces")),
		MinConfidence:    getEnvAsFloatOrDefault("ZPRAVODAJ_MIN_CONFIDENCE", 30),
		Workers:          getEnvAsIntOrDefault("ZPRAVODAJ_WORKERS", 0),
		QueueConcurrency: getEnvAsIntOrDefault("ZPRAVODAJ_QUEUE_CONCURRENCY", 2),
		MaxUploadBytes:   getEnvAsInt64OrDefault("ZPRAVODAJ_MAX_UPLOAD_BYTES", 100<<20),
		ConvertTimeout:   time.Duration(getEnvAsIntOrDefault("ZPRAVODAJ_CONVERT_TIMEOUT", 600)) * time.Second,
		LogLevel:         getEnvOrDefault("ZPRAVODAJ_LOG_LEVEL", "info"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks bounds; required-per-binary settings are checked by
// the binaries themselves.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("ZPRAVODAJ_LISTEN_ADDR must not be empty")
	}
	if c.Account == "" {
		return fmt.Errorf("ZPRAVODAJ_ACCOUNT must not be empty")
	}
	if c.QueueConcurrency < 1 || c.QueueConcurrency > 32 {
		return fmt.Errorf("ZPRAVODAJ_QUEUE_CONCURRENCY must be between 1 and 32, got %d", c.QueueConcurrency)
	}
	if c.MaxUploadBytes < 1024 {
		return fmt.Errorf("ZPRAVODAJ_MAX_UPLOAD_BYTES must be at least 1024, got %d", c.MaxUploadBytes)
	}
	if c.ConvertTimeout < time.Second {
		return fmt.Errorf("ZPRAVODAJ_CONVERT_TIMEOUT must be at least 1 second, got %s", c.ConvertTimeout)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("ZPRAVODAJ_LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

// ConvertOptions maps the profile part of the configuration onto a
// conversion profile.
func (c *Config) ConvertOptions() convert.Options {
	opts := convert.DefaultOptions()
	opts.DPI = c.DPI
	opts.Quality = c.Quality
	opts.Languages = c.Languages
	opts.MinConfidence = c.MinConfidence
	opts.Workers = c.Workers
	return opts
}

// Level maps LogLevel onto the logger's level type.
func (c *Config) Level() observability.Level {
	switch c.LogLevel {
	case "debug":
		return observability.LevelDebug
	case "warn":
		return observability.LevelWarn
	case "error":
		return observability.LevelError
	default:
		return observability.LevelInfo
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
