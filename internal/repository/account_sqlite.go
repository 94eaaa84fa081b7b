package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Proton-105/phonelookup/internal/domain"
	"github.com/Proton-105/phonelookup/internal/ledger"
)

type accountRow struct {
	UserID         string `gorm:"primaryKey;size:128"`
	Balance        int64  `gorm:"not null"`
	LookupsUsed    int64  `gorm:"not null"`
	Plan           string `gorm:"size:16;not null"`
	JoinedAt       time.Time
	LastActivityAt time.Time `gorm:"index"`
}

func (accountRow) TableName() string { return "accounts" }

func toRow(a domain.Account) accountRow {
	return accountRow{
		UserID:         a.UserID,
		Balance:        a.Balance,
		LookupsUsed:    a.LookupsUsed,
		Plan:           string(a.Plan),
		JoinedAt:       a.JoinedAt.UTC(),
		LastActivityAt: a.LastActivityAt.UTC(),
	}
}

func (r accountRow) toDomain() domain.Account {
	return domain.Account{
		UserID:         r.UserID,
		Balance:        r.Balance,
		LookupsUsed:    r.LookupsUsed,
		Plan:           domain.Plan(r.Plan),
		JoinedAt:       r.JoinedAt.UTC(),
		LastActivityAt: r.LastActivityAt.UTC(),
	}
}

// SQLiteAccountStore keeps accounts in a local SQLite file through gorm, for single-node deployments.
type SQLiteAccountStore struct {
	db  *gorm.DB
	log *slog.Logger
}

var _ ledger.Store = (*SQLiteAccountStore)(nil)

// OpenSQLite opens (creating if needed) the database at path and migrates the accounts table.
// Use ":memory:" for an ephemeral database.
func OpenSQLite(path string, log *slog.Logger) (*SQLiteAccountStore, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" databases shared.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&accountRow{}); err != nil {
		return nil, fmt.Errorf("migrate accounts: %w", err)
	}

	return &SQLiteAccountStore{db: db, log: log}, nil
}

func (s *SQLiteAccountStore) LoadAll(ctx context.Context) ([]domain.Account, error) {
	var rows []accountRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		s.log.Error("failed to load accounts", slog.Any("error", err))
		return nil, fmt.Errorf("select accounts: %w", err)
	}

	accounts := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, row.toDomain())
	}
	return accounts, nil
}

func (s *SQLiteAccountStore) Save(ctx context.Context, account domain.Account) error {
	row := toRow(account)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "lookups_used", "plan", "last_activity_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

func (s *SQLiteAccountStore) Delete(ctx context.Context, userID string) error {
	if err := s.db.WithContext(ctx).Delete(&accountRow{}, "user_id = ?", userID).Error; err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

func (s *SQLiteAccountStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLiteAccountStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
