package requester

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/ocrparse/internal/metrics"
	"github.com/local/ocrparse/internal/ratelimit"
)

// Requester issues a single logical POST with pacing, per-attempt timeouts
// and 429 retry/backoff on top of a shared rate limiter.
type Requester struct {
	hc         *http.Client
	limiter    ratelimit.Limiter
	timeout    time.Duration
	maxRetries int
}

// Options control one logical request.
type Options struct {
	// AllowRateLimitRetry enables the 429 backoff loop. When false the first
	// 429 is returned to the caller as RateLimitError.
	AllowRateLimitRetry bool
	// Timeout overrides the configured per-attempt timeout when > 0.
	Timeout time.Duration
}

// New creates a Requester. maxRetries bounds additional attempts after 429
// responses; timeout applies per attempt unless overridden per call.
func New(limiter ratelimit.Limiter, timeout time.Duration, maxRetries int) *Requester {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Requester{
		hc:         &http.Client{},
		limiter:    limiter,
		timeout:    timeout,
		maxRetries: maxRetries,
	}
}

// Do posts payload to rawURL and decodes the JSON response body into out.
// Pacing is applied before every attempt, retries included. Outcomes:
//   - 200 with decodable body: nil error
//   - 200 with undecodable body: *RequestError
//   - 429: retried with exponential backoff while allowed, otherwise
//     *RateLimitError carrying the last response
//   - any other status: *RequestError, no retry
//   - transport timeout: *TimeoutError, no retry
//
// Waits (pacing, network, backoff sleeps) all observe ctx.
func (r *Requester) Do(ctx context.Context, rawURL string, headers map[string]string, payload any, out any, opts Options) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	endpoint := endpointLabel(rawURL)
	timeout := r.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	var lastRateLimit *RateLimitError
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if err := r.limiter.Pace(ctx); err != nil {
			return err
		}

		start := time.Now()
		status, respBody, err := r.dispatch(ctx, rawURL, headers, body, timeout)
		dur := time.Since(start)

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				metrics.ObserveRequest(endpoint, "timeout", dur)
				log.Warn().Str("endpoint", endpoint).Dur("timeout", timeout).Msg("request timed out")
				return &TimeoutError{After: timeout}
			}
			metrics.ObserveRequest(endpoint, "failed", dur)
			return &RequestError{Body: err.Error()}
		}

		switch {
		case status == http.StatusTooManyRequests:
			metrics.ObserveRequest(endpoint, "rate_limited", dur)
			lastRateLimit = &RateLimitError{StatusCode: status, Body: string(respBody)}
			if !opts.AllowRateLimitRetry || attempt >= r.maxRetries {
				return lastRateLimit
			}
			delay := r.limiter.RetryDelay(attempt)
			metrics.IncRateLimitRetry(endpoint)
			log.Warn().
				Str("endpoint", endpoint).
				Int("attempt", attempt+1).
				Int("max_retries", r.maxRetries).
				Dur("retry_in", delay).
				Msg("rate limit hit (429), backing off")
			if err := wait(ctx, delay); err != nil {
				return err
			}
			continue

		case status != http.StatusOK:
			metrics.ObserveRequest(endpoint, "failed", dur)
			return &RequestError{StatusCode: status, Body: string(respBody)}
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				metrics.ObserveRequest(endpoint, "failed", dur)
				return &RequestError{StatusCode: status, Body: fmt.Sprintf("decode response: %v", err)}
			}
		}
		metrics.ObserveRequest(endpoint, "success", dur)
		log.Debug().Str("endpoint", endpoint).Dur("duration", dur).Msg("request ok")
		return nil
	}

	// Loop can only fall through after repeated 429s.
	if lastRateLimit != nil {
		return lastRateLimit
	}
	return &RateLimitError{StatusCode: http.StatusTooManyRequests, Body: "retry budget exhausted"}
}

// DoSync is the blocking variant of Do. Pacing waits, network I/O and backoff
// sleeps occupy the calling goroutine; the outcome for a given sequence of
// server responses is identical to Do.
func (r *Requester) DoSync(rawURL string, headers map[string]string, payload any, out any, opts Options) error {
	return r.Do(context.Background(), rawURL, headers, payload, out, opts)
}

func (r *Requester) dispatch(ctx context.Context, rawURL string, headers map[string]string, body []byte, timeout time.Duration) (int, []byte, error) {
	actx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(actx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func endpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return rawURL
	}
	return u.Path
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
