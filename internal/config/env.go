package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom log forwarding configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ServiceConfig holds the OCR service connection and pacing settings.
type ServiceConfig struct {
	BaseURL             string
	APIKey              string
	Timeout             time.Duration
	RequestDelay        time.Duration
	MaxRateLimitRetries int
	RateLimitRetryDelay time.Duration
	DisableRetry        bool
	ReturnLayoutInfo    bool
	ConcatenatePages    bool
	MaxPages            int
	PacingRedisURL      string
}

// ArchiveConfig controls where parse results are stored.
type ArchiveConfig struct {
	Dir      string
	S3Bucket string
	Password string
}

// MetricsConfig controls the optional /metrics endpoint.
type MetricsConfig struct {
	Enabled bool
	Port    string
}

// Config is the top-level CLI configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Service ServiceConfig
	Archive ArchiveConfig
	Metrics MetricsConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/ocrparse.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_ocrparse",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Service = ServiceConfig{
		BaseURL:             getEnv("OCR_BASE_URL", "http://localhost:8080"),
		APIKey:              getEnv("OCR_API_KEY", ""),
		Timeout:             parseDuration(getEnv("OCR_TIMEOUT", "120s"), 120*time.Second),
		RequestDelay:        parseDuration(getEnv("OCR_REQUEST_DELAY", "0s"), 0),
		MaxRateLimitRetries: parseInt(getEnv("OCR_MAX_RATE_LIMIT_RETRIES", "3"), 3),
		RateLimitRetryDelay: parseDuration(getEnv("OCR_RATE_LIMIT_RETRY_DELAY", "5s"), 5*time.Second),
		DisableRetry:        parseBool(getEnv("OCR_DISABLE_RATE_LIMIT_RETRY", "0")),
		ReturnLayoutInfo:    parseBool(getEnv("OCR_RETURN_LAYOUT_INFO", "0")),
		ConcatenatePages:    parseBool(getEnv("OCR_CONCATENATE_PAGES", "true")),
		MaxPages:            parseInt(getEnv("OCR_MAX_PAGES", "0"), 0),
		PacingRedisURL:      getEnv("OCR_PACING_REDIS_URL", ""),
	}

	cfg.Archive = ArchiveConfig{
		Dir:      getEnv("RESULT_DIR", "results"),
		S3Bucket: getEnv("RESULT_S3_BUCKET", ""),
		Password: getEnv("RESULT_PASSWORD", ""),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: parseBool(getEnv("METRICS_ENABLED", "0")),
		Port:    getEnv("METRICS_PORT", "9090"),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
