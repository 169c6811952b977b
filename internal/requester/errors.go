package requester

import (
	"errors"
	"fmt"
	"time"
)

// RequestError represents a hard failure: a non-200, non-429 response or an
// undecodable success body. Never retried.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// RateLimitError represents a 429 response surfaced after the retry budget is
// exhausted or when rate-limit retries are disabled. Carries the last server
// response.
type RateLimitError struct {
	StatusCode int
	Body       string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: HTTP %d: %s", e.StatusCode, e.Body)
}

// TimeoutError represents a transport-level timeout. Terminal, never retried,
// independent of the 429 retry counter.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s", e.After)
}

func IsRateLimited(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
