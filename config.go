package ocrparse

import (
	"fmt"
	"strings"
	"time"
)

// ConfigError reports an invalid or missing configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// Config configures a Client. BaseURL and APIKey are required; for local
// service deployments without auth any non-empty APIKey is accepted.
type Config struct {
	// APIKey is sent as "Authorization: Bearer <key>".
	APIKey string
	// BaseURL of the OCR service, e.g. "http://localhost:8080".
	// A trailing slash is trimmed.
	BaseURL string

	// Timeout is the per-attempt request timeout. Defaults to 120s; layout
	// parsing of large documents is slow.
	Timeout time.Duration
	// RequestDelay is the minimum interval between request dispatches,
	// shared by all concurrent calls through one Client. Zero disables
	// pacing.
	RequestDelay time.Duration

	// DisableRateLimitRetry turns off automatic retry on 429 responses.
	// The zero value keeps retries enabled.
	DisableRateLimitRetry bool
	// MaxRateLimitRetries bounds additional attempts after 429 responses.
	// Defaults to 3.
	MaxRateLimitRetries int
	// RateLimitRetryDelay is the base of the exponential backoff schedule
	// (delay * 2^attempt). Defaults to 5s.
	RateLimitRetryDelay time.Duration

	// ReturnLayoutInfo makes Parse populate per-page layout metadata in
	// addition to the markdown text.
	ReturnLayoutInfo bool
	// Visualize is forwarded to the layout-parsing endpoint when set.
	Visualize *bool

	// EnableLog writes a rotating client log file under LogDir.
	EnableLog bool
	// LogDir defaults to "ocrparse-logs".
	LogDir string

	// MaxPages, when > 0, rejects PDF inputs with more pages before any
	// upload happens. Zero means unlimited.
	MaxPages int

	// PacingRedisURL, when set, shares the pacing state across processes
	// through Redis instead of keeping it in-process.
	PacingRedisURL string
}

// withDefaults returns a copy with defaults applied and BaseURL normalized.
func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
	if c.MaxRateLimitRetries == 0 {
		c.MaxRateLimitRetries = 3
	}
	if c.RateLimitRetryDelay == 0 {
		c.RateLimitRetryDelay = 5 * time.Second
	}
	if c.LogDir == "" {
		c.LogDir = "ocrparse-logs"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return &ConfigError{Field: "BaseURL", Reason: "must not be empty"}
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return &ConfigError{Field: "BaseURL", Reason: "must start with http:// or https://"}
	}
	if c.APIKey == "" {
		return &ConfigError{Field: "APIKey", Reason: "must not be empty"}
	}
	if c.Timeout < 0 {
		return &ConfigError{Field: "Timeout", Reason: "must not be negative"}
	}
	if c.RequestDelay < 0 {
		return &ConfigError{Field: "RequestDelay", Reason: "must not be negative"}
	}
	if c.MaxRateLimitRetries < 0 {
		return &ConfigError{Field: "MaxRateLimitRetries", Reason: "must not be negative"}
	}
	if c.RateLimitRetryDelay < 0 {
		return &ConfigError{Field: "RateLimitRetryDelay", Reason: "must not be negative"}
	}
	if c.MaxPages < 0 {
		return &ConfigError{Field: "MaxPages", Reason: "must not be negative"}
	}
	return nil
}
