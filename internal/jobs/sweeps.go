package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/Proton-105/phonelookup/internal/analytics"
	"github.com/Proton-105/phonelookup/internal/idempotency"
	"github.com/Proton-105/phonelookup/internal/ledger"
	"github.com/Proton-105/phonelookup/internal/ratelimit"
	"github.com/Proton-105/phonelookup/pkg/metrics"
)

const (
	JobEvictIdle        = "evict_idle"
	JobWindowCleanup    = "window_cleanup"
	JobGauges           = "gauges"
	JobIdempotencySweep = "idempotency_sweep"
)

// EvictIdle drops accounts idle for longer than threshold.
func EvictIdle(spec string, l *ledger.Ledger, threshold time.Duration, log *slog.Logger) Job {
	return Job{
		Name: JobEvictIdle,
		Spec: spec,
		Run: func(ctx context.Context, now time.Time) error {
			removed := l.EvictIdle(ctx, now, threshold)
			if removed > 0 {
				log.InfoContext(ctx, "idle accounts evicted", slog.Int("removed", removed))
			}
			metrics.SetLedgerAccounts(l.Len())
			return nil
		},
	}
}

// WindowCleanup drops elapsed in-memory rate windows.
func WindowCleanup(spec string, limiter *ratelimit.MemoryLimiter) Job {
	return Job{
		Name: JobWindowCleanup,
		Spec: spec,
		Run: func(_ context.Context, now time.Time) error {
			limiter.Cleanup(now)
			metrics.SetRateWindows(limiter.Len())
			return nil
		},
	}
}

// Gauges refreshes the point-in-time gauges. sink may be nil.
func Gauges(spec string, l *ledger.Ledger, sink *analytics.Sink) Job {
	return Job{
		Name: JobGauges,
		Spec: spec,
		Run: func(_ context.Context, now time.Time) error {
			if sink != nil {
				sink.RefreshGauges(now)
			}
			metrics.SetLedgerAccounts(l.Len())
			return nil
		},
	}
}

// IdempotencySweep removes idempotency keys left without a usable expiry.
func IdempotencySweep(spec string, cleaner *idempotency.Cleaner, log *slog.Logger) Job {
	return Job{
		Name: JobIdempotencySweep,
		Spec: spec,
		Run: func(ctx context.Context, _ time.Time) error {
			removed, err := cleaner.Sweep(ctx)
			if err != nil {
				return err
			}
			if removed > 0 {
				log.InfoContext(ctx, "stale idempotency keys removed", slog.Int("removed", removed))
			}
			return nil
		},
	}
}
