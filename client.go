// Package ocrparse is a client for two-phase document-OCR service
// deployments: a layout-parsing call turns a PDF or image into structured
// per-page results, and a restructure call merges those pages into final
// markdown text. Requests are paced, 429 responses are retried with
// exponential backoff, and embedded base64 images are stripped from the
// returned markdown.
package ocrparse

import (
	"path/filepath"

	"github.com/local/ocrparse/internal/logger"
	"github.com/local/ocrparse/internal/ratelimit"
	"github.com/local/ocrparse/internal/requester"
)

// Client drives the two-phase OCR pipeline. One Client owns one pacing
// schedule; all concurrent Parse calls through it share the minimum request
// interval. Safe for concurrent use.
type Client struct {
	cfg     Config
	limiter ratelimit.Limiter
	req     *requester.Requester
}

// New validates cfg and returns a ready Client.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.EnableLog {
		if err := logger.Init(logger.Options{
			Level:      "debug",
			File:       filepath.Join(cfg.LogDir, "ocrparse.log"),
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 14,
		}); err != nil {
			return nil, err
		}
	}

	var lim ratelimit.Limiter
	if cfg.PacingRedisURL != "" {
		rl, err := ratelimit.NewRedis(cfg.PacingRedisURL, "", cfg.RequestDelay, cfg.RateLimitRetryDelay)
		if err != nil {
			return nil, err
		}
		lim = rl
	} else {
		lim = ratelimit.NewLocal(cfg.RequestDelay, cfg.RateLimitRetryDelay)
	}

	return &Client{
		cfg:     cfg,
		limiter: lim,
		req:     requester.New(lim, cfg.Timeout, cfg.MaxRateLimitRetries),
	}, nil
}

// Close releases limiter resources. Only relevant with Redis-backed pacing.
func (c *Client) Close() error {
	if rl, ok := c.limiter.(*ratelimit.Redis); ok {
		return rl.Close()
	}
	return nil
}

func (c *Client) headers() map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if c.cfg.APIKey != "" {
		h["Authorization"] = "Bearer " + c.cfg.APIKey
	}
	return h
}
