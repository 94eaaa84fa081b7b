package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/phonelookup/internal/shard"
)

func windowStart(t time.Time, window time.Duration) time.Time {
	return time.Unix(0, BucketKey(t, window)*int64(window))
}

func TestMemoryLimiter_AdmitsUpToLimitPerWindow(t *testing.T) {
	limiter := NewMemoryLimiter(testLogger())
	ctx := context.Background()
	window := time.Minute
	start := windowStart(time.Unix(1_700_000_000, 0), window)

	for i := 0; i < 10; i++ {
		result, err := limiter.Check(ctx, "user:1", 10, window, start.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d", i+1)
	}

	result, err := limiter.Check(ctx, "user:1", 10, window, start.Add(30*time.Second))
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, start.Add(window), result.ResetAt)

	result, err = limiter.Check(ctx, "user:1", 10, window, start.Add(window))
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 9, result.Remaining)
}

func TestMemoryLimiter_DeniedRequestsDoNotConsume(t *testing.T) {
	limiter := NewMemoryLimiter(testLogger())
	ctx := context.Background()
	window := time.Minute
	start := windowStart(time.Unix(1_700_000_000, 0), window)

	_, err := limiter.Check(ctx, "k", 1, window, start)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = limiter.Check(ctx, "k", 1, window, start)
		assert.ErrorIs(t, err, ErrLimitExceeded)
	}

	s := limiter.shards[shard.Index("k", len(limiter.shards))]
	s.mu.Lock()
	assert.Equal(t, 1, s.windows["k"].count)
	s.mu.Unlock()
}

func TestMemoryLimiter_OlderBucketCountsAgainstCurrentWindow(t *testing.T) {
	limiter := NewMemoryLimiter(testLogger())
	ctx := context.Background()
	window := time.Minute
	start := windowStart(time.Unix(1_700_000_000, 0), window)
	current := start.Add(window + 10*time.Second)
	stale := start.Add(10 * time.Second)

	admitted := 0
	for i := 0; i < 40; i++ {
		at := current
		if i%2 == 1 {
			at = stale
		}
		result, err := limiter.Check(ctx, "user:1", 10, window, at)
		if err == nil && result.Allowed {
			admitted++
		}
	}
	assert.Equal(t, 10, admitted)

	result, err := limiter.Check(ctx, "user:1", 10, window, stale)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.Equal(t, start.Add(2*window), result.ResetAt)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewMemoryLimiter(testLogger())
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	_, err := limiter.Check(ctx, "a", 1, time.Minute, now)
	require.NoError(t, err)
	_, err = limiter.Check(ctx, "a", 1, time.Minute, now)
	assert.ErrorIs(t, err, ErrLimitExceeded)

	_, err = limiter.Check(ctx, "b", 1, time.Minute, now)
	assert.NoError(t, err)
}

func TestMemoryLimiter_ConcurrentChecksNeverExceedLimit(t *testing.T) {
	limiter := NewMemoryLimiter(testLogger())
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if result, err := limiter.Check(ctx, "burst", 10, time.Minute, now); err == nil && result.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), admitted.Load())
}

func TestMemoryLimiter_CleanupDropsElapsedBuckets(t *testing.T) {
	limiter := NewMemoryLimiter(testLogger())
	ctx := context.Background()
	window := time.Minute
	start := windowStart(time.Unix(1_700_000_000, 0), window)

	_, _ = limiter.Check(ctx, "old", 5, window, start)
	_, _ = limiter.Check(ctx, "current", 5, window, start.Add(window))

	assert.Equal(t, 2, limiter.Len())
	assert.Equal(t, 1, limiter.Cleanup(start.Add(window+time.Second)))
	assert.Equal(t, 1, limiter.Len())
	assert.Equal(t, 0, limiter.Cleanup(start.Add(window+time.Second)))
}

func TestMemoryLimiter_NonPositiveLimitDenies(t *testing.T) {
	limiter := NewMemoryLimiter(testLogger())

	result, err := limiter.Check(context.Background(), "zero", 0, time.Minute, time.Now())
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, result.Allowed)
}
