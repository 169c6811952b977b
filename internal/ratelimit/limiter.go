package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter paces request dispatches and computes retry backoff delays.
// Pace reserves the next dispatch slot and waits until it arrives; the slot
// is consumed even when the caller's context expires during the wait, so a
// cancelled attempt still counts against the pacing schedule.
type Limiter interface {
	Pace(ctx context.Context) error
	RetryDelay(attempt int) time.Duration
}

// Local enforces a minimum interval between dispatches within a single
// process. The last reserved dispatch time is shared across all callers of
// one instance.
type Local struct {
	interval   time.Duration
	retryDelay time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewLocal creates an in-process limiter. interval may be zero to disable
// pacing; retryDelay is the base for exponential backoff after 429 responses.
func NewLocal(interval, retryDelay time.Duration) *Local {
	return &Local{interval: interval, retryDelay: retryDelay}
}

// Pace blocks until at least the configured interval has elapsed since the
// previous reserved dispatch, then records the new dispatch time. Safe for
// concurrent use: the slot is reserved under the lock, so two racing callers
// can never both observe a stale timestamp and proceed together.
func (l *Local) Pace(ctx context.Context) error {
	at := l.reserve(time.Now())
	return waitUntil(ctx, at)
}

// reserve assigns the earliest allowed dispatch time at or after now and
// advances the shared timestamp to it.
func (l *Local) reserve(now time.Time) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	at := now
	if l.interval > 0 && !l.last.IsZero() {
		if next := l.last.Add(l.interval); next.After(at) {
			at = next
		}
	}
	l.last = at
	return at
}

// RetryDelay returns retryDelay * 2^attempt (attempt is 0-indexed).
// No jitter and no upper cap; the 429 retry budget bounds total growth.
func (l *Local) RetryDelay(attempt int) time.Duration {
	return backoff(l.retryDelay, attempt)
}

func backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return base * time.Duration(int64(1)<<uint(attempt))
}

func waitUntil(ctx context.Context, at time.Time) error {
	d := time.Until(at)
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
