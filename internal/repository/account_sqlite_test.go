package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/phonelookup/internal/domain"
	"github.com/Proton-105/phonelookup/internal/ledger"
)

func openTestStore(t *testing.T) *SQLiteAccountStore {
	t.Helper()
	store, err := OpenSQLite(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteAccountStore_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	joined := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	account := domain.Account{
		UserID:         "u1",
		Balance:        5,
		Plan:           domain.PlanFree,
		JoinedAt:       joined,
		LastActivityAt: joined,
	}
	require.NoError(t, store.Save(ctx, account))

	account.Balance = 3
	account.LookupsUsed = 2
	account.Plan = domain.PlanPaid
	account.LastActivityAt = joined.Add(time.Hour)
	require.NoError(t, store.Save(ctx, account))

	loaded, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, int64(3), loaded[0].Balance)
	assert.Equal(t, int64(2), loaded[0].LookupsUsed)
	assert.Equal(t, domain.PlanPaid, loaded[0].Plan)
	assert.True(t, joined.Equal(loaded[0].JoinedAt))
	assert.True(t, joined.Add(time.Hour).Equal(loaded[0].LastActivityAt))

	require.NoError(t, store.Delete(ctx, "u1"))
	require.NoError(t, store.Delete(ctx, "u1"))

	loaded, err = store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
	assert.NoError(t, store.Ping(ctx))
}

func TestSQLiteAccountStore_BacksLedger(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	l := ledger.New(ledger.WithStore(store), ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	_, ok := l.TryDebit(ctx, "u1")
	require.True(t, ok)
	_, err := l.Credit(ctx, "u2", 10, domain.PlanPaid)
	require.NoError(t, err)

	restarted := ledger.New(ledger.WithStore(store))
	n, err := restarted.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	u1, ok := restarted.Get("u1")
	require.True(t, ok)
	assert.Equal(t, ledger.DefaultStartingBalance-1, u1.Balance)
	assert.Equal(t, int64(1), u1.LookupsUsed)
}
