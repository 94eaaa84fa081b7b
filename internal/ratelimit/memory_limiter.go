package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Proton-105/phonelookup/internal/shard"
)

type window struct {
	bucket int64
	size   time.Duration
	count  int
}

type limiterShard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// MemoryLimiter keeps fixed-window counters in process memory, striped by key.
type MemoryLimiter struct {
	shards []*limiterShard
	log    *slog.Logger
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter returns an in-memory limiter implementation.
func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}

	shards := make([]*limiterShard, shard.DefaultCount)
	for i := range shards {
		shards[i] = &limiterShard{windows: make(map[string]*window)}
	}

	return &MemoryLimiter{
		shards: shards,
		log:    log,
	}
}

// Check admits the request while the key's counter for the current bucket is below limit.
func (m *MemoryLimiter) Check(ctx context.Context, key string, limit int, size time.Duration, now time.Time) (*Result, error) {
	resetAt := BucketEnd(now, size)
	if limit <= 0 {
		return &Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, ErrLimitExceeded
	}

	bucket := BucketKey(now, size)
	s := m.shards[shard.Index(key, len(m.shards))]

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	switch {
	case !ok || w.size != size:
		w = &window{bucket: bucket, size: size}
		s.windows[key] = w
	case bucket > w.bucket:
		w.bucket, w.count = bucket, 0
	case bucket < w.bucket:
		// A stale time counts against the newer window it arrived after.
		resetAt = time.Unix(0, (w.bucket+1)*int64(size))
	}

	allowed := w.count < limit
	if allowed {
		w.count++
	}

	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   resetAt,
	}

	if !allowed {
		return result, ErrLimitExceeded
	}

	return result, nil
}

// Cleanup removes counters whose bucket is already in the past and returns how many were dropped.
func (m *MemoryLimiter) Cleanup(now time.Time) int {
	removed := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for key, w := range s.windows {
			if w.bucket < BucketKey(now, w.size) {
				delete(s.windows, key)
				removed++
			}
		}
		s.mu.Unlock()
	}

	if removed > 0 && m.log != nil {
		m.log.Debug("rate limit windows cleaned", slog.Int("windows_removed", removed))
	}

	return removed
}

// Len returns the number of tracked windows.
func (m *MemoryLimiter) Len() int {
	total := 0
	for _, s := range m.shards {
		s.mu.Lock()
		total += len(s.windows)
		s.mu.Unlock()
	}
	return total
}
