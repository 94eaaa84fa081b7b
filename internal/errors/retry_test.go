package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithRetry_RetriesRetryableErrors(t *testing.T) {
	attempts := 0
	err := WithRetryBackoff(context.Background(), time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return NewPersistenceError(errors.New("connection reset"))
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetry_StopsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := WithRetryBackoff(context.Background(), time.Millisecond, func() error {
		attempts++
		return NewValidationError("bad input")
	})

	var appErr *AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, CodeValidation, appErr.Code)
	assert.Equal(t, 1, attempts)
}

func TestWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := WithRetryBackoff(context.Background(), time.Millisecond, func() error {
		attempts++
		return NewPersistenceError(errors.New("still down"))
	})

	assert.Error(t, err)
	assert.Equal(t, MaxRetries+1, attempts)
}

func TestWithRetry_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.True(t, IsRetryable(NewExternalAPIError("numverify", nil)))
	assert.True(t, IsRetryable(NewPersistenceError(nil)))
	assert.False(t, IsRetryable(NewUnauthorizedError("nope")))
}
