package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/phonelookup/internal/analytics"
	"github.com/Proton-105/phonelookup/internal/idempotency"
	"github.com/Proton-105/phonelookup/internal/ledger"
	"github.com/Proton-105/phonelookup/internal/ratelimit"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestScheduler_RegisterRejectsBadJobs(t *testing.T) {
	s := NewScheduler(discardLogger())
	noop := func(context.Context, time.Time) error { return nil }

	require.NoError(t, s.Register(Job{Name: "a", Spec: "@every 1m", Run: noop}))
	assert.Error(t, s.Register(Job{Name: "a", Spec: "@every 1m", Run: noop}))
	assert.Error(t, s.Register(Job{Name: "b", Spec: "not a spec", Run: noop}))
	assert.Error(t, s.Register(Job{Name: "", Spec: "@every 1m", Run: noop}))
	assert.Error(t, s.Register(Job{Name: "c", Spec: "@every 1m"}))
}

func TestScheduler_RunNowPassesClockAndError(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(discardLogger(), WithClock(fixedClock(at)))

	var seen time.Time
	boom := errors.New("boom")
	require.NoError(t, s.Register(Job{Name: "report", Spec: "@hourly", Run: func(_ context.Context, now time.Time) error {
		seen = now
		return boom
	}}))

	err := s.RunNow(context.Background(), "report")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, at, seen)

	assert.ErrorIs(t, s.RunNow(context.Background(), "missing"), ErrUnknownJob)
}

func TestScheduler_StartAndStop(t *testing.T) {
	s := NewScheduler(discardLogger())

	var runs atomic.Int32
	require.NoError(t, s.Register(Job{Name: "tick", Spec: "@every 1s", Run: func(context.Context, time.Time) error {
		runs.Add(1)
		return nil
	}}))

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestEvictIdle_RemovesStaleAccounts(t *testing.T) {
	joined := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := ledger.New(ledger.WithClock(fixedClock(joined)), ledger.WithLogger(discardLogger()))
	l.GetOrCreate(context.Background(), "u1")

	later := joined.Add(ledger.DefaultIdleThreshold + time.Hour)
	s := NewScheduler(discardLogger(), WithClock(fixedClock(later)))
	require.NoError(t, s.Register(EvictIdle("@hourly", l, ledger.DefaultIdleThreshold, discardLogger())))

	require.NoError(t, s.RunNow(context.Background(), JobEvictIdle))
	assert.Equal(t, 0, l.Len())
}

func TestWindowCleanup_DropsElapsedWindows(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewMemoryLimiter(discardLogger())
	_, err := limiter.Check(context.Background(), "user:u1", 10, time.Minute, start)
	require.NoError(t, err)
	require.Equal(t, 1, limiter.Len())

	s := NewScheduler(discardLogger(), WithClock(fixedClock(start.Add(2*time.Minute))))
	require.NoError(t, s.Register(WindowCleanup("@every 1m", limiter)))

	require.NoError(t, s.RunNow(context.Background(), JobWindowCleanup))
	assert.Equal(t, 0, limiter.Len())
}

func TestGauges_RunsWithoutSink(t *testing.T) {
	l := ledger.New(ledger.WithLogger(discardLogger()))
	s := NewScheduler(discardLogger())
	require.NoError(t, s.Register(Gauges("@every 30s", l, nil)))
	require.NoError(t, s.Register(Job{Name: "gauges_with_sink", Spec: "@every 30s", Run: Gauges("", l, analytics.NewSink()).Run}))

	assert.NoError(t, s.RunNow(context.Background(), JobGauges))
	assert.NoError(t, s.RunNow(context.Background(), "gauges_with_sink"))
}

func TestIdempotencySweep_DeletesKeysWithoutExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, mr.Set("idempotency:orphan", "processing"))
	require.NoError(t, mr.Set("idempotency:fresh", "processing"))
	mr.SetTTL("idempotency:fresh", time.Minute)

	s := NewScheduler(discardLogger())
	cleaner := idempotency.NewCleaner(client, discardLogger(), time.Hour)
	require.NoError(t, s.Register(IdempotencySweep("@hourly", cleaner, discardLogger())))

	require.NoError(t, s.RunNow(context.Background(), JobIdempotencySweep))
	assert.False(t, mr.Exists("idempotency:orphan"))
	assert.True(t, mr.Exists("idempotency:fresh"))
}
