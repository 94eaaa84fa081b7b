// Package ratelimit implements fixed-window per-key request limits.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter describes a rate-limiting strategy interface.
//
// Windows are fixed: the bucket is now / window, counts never carry over between buckets,
// and a denied request does not consume capacity.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (*Result, error)
}

// ErrLimitExceeded indicates the rate limit has been reached for the key.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// BucketKey returns the fixed window index that now falls into.
func BucketKey(now time.Time, window time.Duration) int64 {
	if window <= 0 {
		return 0
	}
	return now.UnixNano() / int64(window)
}

// BucketEnd returns the instant the bucket containing now resets.
func BucketEnd(now time.Time, window time.Duration) time.Time {
	if window <= 0 {
		return now
	}
	return time.Unix(0, (BucketKey(now, window)+1)*int64(window))
}
