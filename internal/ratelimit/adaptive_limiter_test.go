package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Check(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (*Result, error) {
	args := m.Called(ctx, key, limit, window, now)
	result, _ := args.Get(0).(*Result)
	return result, args.Error(1)
}

func TestAdaptiveLimiter_UsesPrimaryWhenHealthy(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	primary := &mockLimiter{}
	fallback := &mockLimiter{}
	primary.On("Check", mock.Anything, "k", 10, time.Minute, now).Return(&Result{Allowed: true, Remaining: 9}, nil).Once()

	limiter := NewAdaptiveLimiter(primary, fallback, testLogger())
	result, err := limiter.Check(context.Background(), "k", 10, time.Minute, now)

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	primary.AssertExpectations(t)
	fallback.AssertNotCalled(t, "Check", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdaptiveLimiter_PrimaryDenialIsNotAFailure(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	primary := &mockLimiter{}
	fallback := &mockLimiter{}
	primary.On("Check", mock.Anything, "k", 10, time.Minute, now).Return(&Result{Allowed: false}, ErrLimitExceeded).Once()

	limiter := NewAdaptiveLimiter(primary, fallback, testLogger())
	result, err := limiter.Check(context.Background(), "k", 10, time.Minute, now)

	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, result.Allowed)
	fallback.AssertNotCalled(t, "Check", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdaptiveLimiter_FallsBackWithStricterLimit(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	primary := &mockLimiter{}
	fallback := &mockLimiter{}
	primary.On("Check", mock.Anything, "k", 10, time.Minute, now).Return(nil, errors.New("connection refused")).Once()
	fallback.On("Check", mock.Anything, "k", 5, time.Minute, now).Return(&Result{Allowed: true, Remaining: 4}, nil).Once()

	limiter := NewAdaptiveLimiter(primary, fallback, testLogger())
	result, err := limiter.Check(context.Background(), "k", 10, time.Minute, now)

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	primary.AssertExpectations(t)
	fallback.AssertExpectations(t)
}

func TestAdaptiveLimiter_FallbackLimitNeverDropsToZero(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	primary := &mockLimiter{}
	fallback := &mockLimiter{}
	primary.On("Check", mock.Anything, "k", 1, time.Minute, now).Return(nil, errors.New("connection refused")).Once()
	fallback.On("Check", mock.Anything, "k", 1, time.Minute, now).Return(&Result{Allowed: true}, nil).Once()

	limiter := NewAdaptiveLimiter(primary, fallback, testLogger())
	result, err := limiter.Check(context.Background(), "k", 1, time.Minute, now)

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	fallback.AssertExpectations(t)
}

func TestAdaptiveLimiter_FallbackOnRealBackends(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()

	limiter := NewAdaptiveLimiter(NewRedisLimiter(client, testLogger()), NewMemoryLimiter(testLogger()), testLogger())
	now := time.Unix(1_700_000_000, 0)

	_, err := limiter.Check(context.Background(), "k", 2, time.Minute, now)
	require.NoError(t, err)

	_, err = limiter.Check(context.Background(), "k", 2, time.Minute, now)
	assert.ErrorIs(t, err, ErrLimitExceeded)
}
