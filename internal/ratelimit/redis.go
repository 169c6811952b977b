package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// reserveScript advances the shared last-dispatch timestamp (milliseconds)
// atomically and returns the reserved dispatch time for this caller.
var reserveScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local at = now
local last = tonumber(redis.call('GET', KEYS[1]))
if last and last + interval > at then
    at = last + interval
end
redis.call('SET', KEYS[1], at, 'PX', math.max(interval * 10, 60000))
return at
`)

// Redis paces dispatches across processes by keeping the last-dispatch
// timestamp in Redis. Same contract as Local; the Lua reservation keeps the
// minimum-interval guarantee under concurrent callers on any number of hosts.
type Redis struct {
	client     *redis.Client
	key        string
	interval   time.Duration
	retryDelay time.Duration
}

// NewRedis connects to Redis and returns a shared limiter. key namespaces the
// pacing state so independent clients can pace independently.
func NewRedis(redisURL, key string, interval, retryDelay time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if key == "" {
		key = "ocrparse:pacing:last"
	}
	return &Redis{client: c, key: key, interval: interval, retryDelay: retryDelay}, nil
}

func (r *Redis) Pace(ctx context.Context) error {
	if r.interval <= 0 {
		return nil
	}
	now := time.Now()
	atMs, err := reserveScript.Run(ctx, r.client, []string{r.key},
		now.UnixMilli(), r.interval.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("reserve dispatch slot: %w", err)
	}
	return waitUntil(ctx, time.UnixMilli(atMs))
}

func (r *Redis) RetryDelay(attempt int) time.Duration {
	return backoff(r.retryDelay, attempt)
}

func (r *Redis) Close() error { return r.client.Close() }
