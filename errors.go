package ocrparse

import "github.com/local/ocrparse/internal/requester"

// Error kinds surfaced by Parse. All three propagate unchanged out of the
// pipeline; callers should handle them distinctly.
type (
	// RequestError: non-200, non-429 response or an undecodable body.
	RequestError = requester.RequestError
	// RateLimitError: 429 after the retry budget, carrying the last
	// server response.
	RateLimitError = requester.RateLimitError
	// TimeoutError: transport-level timeout, never retried.
	TimeoutError = requester.TimeoutError
)

// IsRateLimited reports whether err is a RateLimitError.
func IsRateLimited(err error) bool { return requester.IsRateLimited(err) }

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool { return requester.IsTimeout(err) }
