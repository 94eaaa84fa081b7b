// Package idempotency makes retried event deliveries execute once.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultLockTTL   = 30 * time.Second
	DefaultRecordTTL = 24 * time.Hour
)

var (
	ErrRequestInProgress = errors.New("request with this key is already in progress")
	// ErrStoreUnavailable means the operation was not started because the store could not be read or locked.
	ErrStoreUnavailable  = errors.New("idempotency store unavailable")
)

type Operation func(ctx context.Context) (interface{}, error)

// Result carries the JSON encoding of the operation's response.
type Result struct {
	Response  json.RawMessage
	FromCache bool
}

type Manager interface {
	Execute(
		ctx context.Context,
		key string,
		ttl time.Duration,
		fn Operation,
	) (*Result, error)
}

type manager struct {
	store   Store
	lockTTL time.Duration
	log     *slog.Logger
}

func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store:   store,
		lockTTL: DefaultLockTTL,
		log:     log,
	}
}

// Execute runs fn once per key. A completed key replays the stored response; a key whose
// first execution is still running yields ErrRequestInProgress. Failed executions are not
// recorded, so the caller may retry them.
func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultRecordTTL
	}

	record, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if record != nil && record.Status == StatusCompleted {
		return &Result{Response: record.Response, FromCache: true}, nil
	}

	locked, err := m.store.Lock(ctx, key, m.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !locked {
		record, err := m.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if record != nil && record.Status == StatusCompleted {
			return &Result{Response: record.Response, FromCache: true}, nil
		}
		return nil, ErrRequestInProgress
	}

	defer func() {
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
			m.log.Warn("idempotency lock release failed", slog.String("key", key), slog.Any("error", err))
		}
	}()

	// Another delivery may have stored its record and released the lock after the first read.
	record, err = m.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if record != nil && record.Status == StatusCompleted {
		return &Result{Response: record.Response, FromCache: true}, nil
	}

	result, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	responseBytes, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	if err := m.store.Set(context.WithoutCancel(ctx), key, &Record{
		Status:   StatusCompleted,
		Response: responseBytes,
	}, ttl); err != nil {
		m.log.Error("idempotency record not stored; a retry will execute again", slog.String("key", key), slog.Any("error", err))
	}

	return &Result{
		Response:  responseBytes,
		FromCache: false,
	}, nil
}
