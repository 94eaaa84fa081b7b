package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return client, mr
}

func TestRedisLimiter_AllowsWithinLimit(t *testing.T) {
	client, _ := setupTestRedis(t)

	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, "test:allows", 5, time.Minute, now)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 5-(i+1), result.Remaining)
	}
}

func TestRedisLimiter_BlocksWhenExceededWithoutIncrementing(t *testing.T) {
	client, mr := setupTestRedis(t)

	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 4; i++ {
		result, err := limiter.Check(ctx, "test:blocks", 2, time.Minute, now)
		if i < 2 {
			require.NoError(t, err)
			assert.True(t, result.Allowed)
		} else {
			assert.ErrorIs(t, err, ErrLimitExceeded)
			assert.False(t, result.Allowed)
		}
	}

	key := "ratelimit:test:blocks:" + strconv.FormatInt(BucketKey(now, time.Minute), 10)
	value, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "2", value)
	assert.True(t, mr.TTL(key) > 0)
}

func TestRedisLimiter_NextWindowResets(t *testing.T) {
	client, _ := setupTestRedis(t)

	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()
	window := time.Minute
	start := time.Unix(0, BucketKey(time.Unix(1_700_000_000, 0), window)*int64(window))

	for i := 0; i < 2; i++ {
		_, err := limiter.Check(ctx, "test:window", 2, window, start.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	_, err := limiter.Check(ctx, "test:window", 2, window, start.Add(59*time.Second))
	assert.ErrorIs(t, err, ErrLimitExceeded)

	result, err := limiter.Check(ctx, "test:window", 2, window, start.Add(window))
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRedisLimiter_ReturnsErrorWhenRedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()

	limiter := NewRedisLimiter(client, testLogger())
	_, err := limiter.Check(context.Background(), "down", 2, time.Minute, time.Now())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrLimitExceeded)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
