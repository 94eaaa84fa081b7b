package ledger

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/phonelookup/internal/domain"
	apperrors "github.com/Proton-105/phonelookup/internal/errors"
)

// Store is the durable copy of the ledger. Save is an upsert keyed by UserID.
type Store interface {
	LoadAll(ctx context.Context) ([]domain.Account, error)
	Save(ctx context.Context, account domain.Account) error
	Delete(ctx context.Context, userID string) error
}

var (
	persistOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_persist_operations_total",
		Help: "Ledger write-through operations by kind and status.",
	}, []string{"op", "status"})

	accountsEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_accounts_evicted_total",
		Help: "Accounts removed by idle eviction.",
	})
)

func (l *Ledger) persistSave(ctx context.Context, account domain.Account) {
	if l.store == nil {
		return
	}

	l.persist(ctx, "save", account.UserID, func(ctx context.Context) error {
		return l.store.Save(ctx, account)
	})
}

func (l *Ledger) persistDelete(ctx context.Context, userID string) {
	if l.store == nil {
		return
	}

	l.persist(ctx, "delete", userID, func(ctx context.Context) error {
		return l.store.Delete(ctx, userID)
	})
}

// persist runs op against the store. Failures are logged and counted; the in-memory ledger stays authoritative.
func (l *Ledger) persist(ctx context.Context, op, userID string, fn func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)

	attempt := func() error {
		if err := fn(ctx); err != nil {
			return apperrors.NewPersistenceError(err)
		}
		return nil
	}

	var err error
	if l.retryPersist {
		err = apperrors.WithRetryBackoff(ctx, l.retryBackoff, attempt)
	} else {
		err = attempt()
	}

	if err != nil {
		persistOpsTotal.WithLabelValues(op, "error").Inc()
		l.log.Error("ledger persistence failed",
			slog.String("op", op),
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return
	}

	persistOpsTotal.WithLabelValues(op, "ok").Inc()
}
