package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// fixedWindowScript admits a request while the bucket counter is below the limit.
// KEYS[1] = bucket key
// ARGV[1] = limit
// ARGV[2] = ttl in milliseconds
//
// Returns the counter after admission, or -1 when the bucket is already at the limit.
var fixedWindowScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= tonumber(ARGV[1]) then
  return -1
end
current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return current
`)

// RedisLimiter implements Limiter with one Redis counter per key and fixed window.
type RedisLimiter struct {
	client redis.Scripter
	log    *slog.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a Redis-backed Limiter implementation.
func NewRedisLimiter(client redis.Scripter, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{
		client: client,
		log:    log,
	}
}

// Check evaluates the fixed-window limit for key atomically inside Redis.
func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("redis client is not configured for rate limiting")
	}

	resetAt := BucketEnd(now, window)
	if limit <= 0 {
		return &Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, ErrLimitExceeded
	}

	redisKey := redisKeyPrefix + key + ":" + strconv.FormatInt(BucketKey(now, window), 10)
	ttl := (2 * window).Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}

	count, err := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, limit, ttl).Int64()
	if err != nil {
		if l.log != nil {
			l.log.Error("rate limiter script failed", slog.String("key", key), slog.Any("error", err))
		}
		return nil, err
	}

	if count < 0 {
		return &Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, ErrLimitExceeded
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   true,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
