// Package repository holds the durable account stores behind the ledger.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Proton-105/phonelookup/internal/domain"
	"github.com/Proton-105/phonelookup/internal/ledger"
)

// PostgresAccountStore keeps accounts in the accounts table through database/sql and lib/pq.
type PostgresAccountStore struct {
	db  *sql.DB
	log *slog.Logger
}

var _ ledger.Store = (*PostgresAccountStore)(nil)

// NewPostgresAccountStore creates a new SQL-backed account store.
func NewPostgresAccountStore(db *sql.DB, log *slog.Logger) *PostgresAccountStore {
	if log == nil {
		log = slog.Default()
	}

	return &PostgresAccountStore{
		db:  db,
		log: log,
	}
}

// LoadAll returns every stored account.
func (r *PostgresAccountStore) LoadAll(ctx context.Context) ([]domain.Account, error) {
	const query = `
		SELECT user_id, balance, lookups_used, plan, joined_at, last_activity_at
		FROM accounts
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.log.Error("failed to load accounts", slog.Any("error", err))
		return nil, fmt.Errorf("select accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var (
			account domain.Account
			plan    string
		)
		if err := rows.Scan(
			&account.UserID,
			&account.Balance,
			&account.LookupsUsed,
			&plan,
			&account.JoinedAt,
			&account.LastActivityAt,
		); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		account.Plan = domain.Plan(plan)
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

// Save upserts the account row.
func (r *PostgresAccountStore) Save(ctx context.Context, account domain.Account) error {
	const query = `
		INSERT INTO accounts (user_id, balance, lookups_used, plan, joined_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			balance = EXCLUDED.balance,
			lookups_used = EXCLUDED.lookups_used,
			plan = EXCLUDED.plan,
			last_activity_at = EXCLUDED.last_activity_at
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		account.UserID,
		account.Balance,
		account.LookupsUsed,
		string(account.Plan),
		account.JoinedAt,
		account.LastActivityAt,
	); err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}

	return nil
}

// Delete removes the account row. Deleting a missing account is not an error.
func (r *PostgresAccountStore) Delete(ctx context.Context, userID string) error {
	const query = `DELETE FROM accounts WHERE user_id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	return nil
}

// Ping checks connectivity for health reporting.
func (r *PostgresAccountStore) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
