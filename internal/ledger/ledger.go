// Package ledger owns per-user credit balances, usage counters and activity timestamps.
//
// Accounts live in a sharded in-memory map. Every mutation of an account happens under that
// account's mutex and is written through to the optional Store before the mutex is released,
// so the durable copy observes per-user mutations in order.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Proton-105/phonelookup/internal/domain"
	apperrors "github.com/Proton-105/phonelookup/internal/errors"
	"github.com/Proton-105/phonelookup/internal/ratelimit"
	"github.com/Proton-105/phonelookup/internal/shard"
)

const (
	DefaultStartingBalance int64 = 5
	DefaultRateLimit             = 10
	DefaultRateWindow            = 60 * time.Second
	DefaultIdleThreshold         = 30 * 24 * time.Hour
)

// Errors returned by Credit.
var (
	ErrInvalidAmount = errors.New("credit amount must be positive")
	ErrEmptyUserID   = errors.New("user id is required")
)

type entry struct {
	mu      sync.Mutex
	account domain.Account
	// evicted is set once the entry has been unlinked from its shard; holders must look it up again.
	evicted bool
}

type accountShard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// Ledger is safe for concurrent use.
type Ledger struct {
	shards          []*accountShard
	store           Store
	limiter         ratelimit.Limiter
	rules           *ratelimit.Rules
	startingBalance int64
	retryPersist    bool
	retryBackoff    time.Duration
	now             func() time.Time
	log             *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithStore(store Store) Option {
	return func(l *Ledger) { l.store = store }
}

// WithRateLimiter sets the limiter backend and the rules that pick limit, window and whitelist.
func WithRateLimiter(limiter ratelimit.Limiter, rules *ratelimit.Rules) Option {
	return func(l *Ledger) {
		if limiter != nil {
			l.limiter = limiter
		}
		l.rules = rules
	}
}

func WithStartingBalance(balance int64) Option {
	return func(l *Ledger) {
		if balance >= 0 {
			l.startingBalance = balance
		}
	}
}

// WithPersistRetries enables retrying failed store writes with exponential backoff.
func WithPersistRetries(enabled bool, initialBackoff time.Duration) Option {
	return func(l *Ledger) {
		l.retryPersist = enabled
		if initialBackoff > 0 {
			l.retryBackoff = initialBackoff
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// New creates an empty ledger. Without WithRateLimiter it limits in memory at DefaultRateLimit per DefaultRateWindow.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		startingBalance: DefaultStartingBalance,
		retryBackoff:    apperrors.InitialBackoff,
		now:             time.Now,
		log:             slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.limiter == nil {
		l.limiter = ratelimit.NewMemoryLimiter(l.log)
	}

	l.shards = make([]*accountShard, shard.DefaultCount)
	for i := range l.shards {
		l.shards[i] = &accountShard{entries: make(map[string]*entry)}
	}

	return l
}

// Load reads every stored account into memory. It runs once at start-up, before traffic is served.
func (l *Ledger) Load(ctx context.Context) (int, error) {
	if l.store == nil {
		return 0, nil
	}

	accounts, err := l.store.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load accounts: %w", err)
	}

	for _, account := range accounts {
		s := l.shardFor(account.UserID)
		s.mu.Lock()
		s.entries[account.UserID] = &entry{account: account}
		s.mu.Unlock()
	}

	return len(accounts), nil
}

// GetOrCreate returns the user's account, creating it with the starting balance on first sight.
// Repeated calls never grant credits again.
func (l *Ledger) GetOrCreate(ctx context.Context, userID string) domain.Account {
	account, _ := l.mutate(ctx, userID, func(a *domain.Account) bool {
		return true
	})
	return account
}

// Get returns a copy of the account without creating it.
func (l *Ledger) Get(userID string) (domain.Account, bool) {
	s := l.shardFor(userID)
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if !ok {
		return domain.Account{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return domain.Account{}, false
	}
	return e.account, true
}

// Len returns the number of accounts held in memory.
func (l *Ledger) Len() int {
	total := 0
	for _, s := range l.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// CheckRateLimit reports whether userID may make another request in the window containing now.
// Whitelisted users are always admitted. Limiter backend errors admit the request.
func (l *Ledger) CheckRateLimit(ctx context.Context, userID string, now time.Time) bool {
	limit, window := DefaultRateLimit, DefaultRateWindow
	if l.rules != nil {
		if l.rules.IsWhitelisted(userID) {
			return true
		}
		ruleLimit, ruleWindow, err := l.rules.GetPerUserLimit()
		if err != nil {
			l.log.Warn("invalid rate limit rule, using defaults", slog.Any("error", err))
		} else {
			limit, window = ruleLimit, ruleWindow
		}
	}

	result, err := l.limiter.Check(ctx, "user:"+userID, limit, window, now)
	if err != nil {
		if errors.Is(err, ratelimit.ErrLimitExceeded) {
			return false
		}
		l.log.Warn("rate limiter unavailable, admitting request",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return true
	}

	return result != nil && result.Allowed
}

// TryDebit takes one credit. It returns false, changing nothing, when the balance is zero.
func (l *Ledger) TryDebit(ctx context.Context, userID string) (domain.Account, bool) {
	return l.mutate(ctx, userID, func(a *domain.Account) bool {
		if a.Balance <= 0 {
			return false
		}
		a.Balance--
		a.LookupsUsed++
		return true
	})
}

// Refund reverses one earlier debit. It reports false, creating nothing, when the account is no
// longer held, since a recreated account already starts from the full starting balance.
func (l *Ledger) Refund(ctx context.Context, userID string) (domain.Account, bool) {
	s := l.shardFor(userID)
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if !ok {
		return domain.Account{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return domain.Account{}, false
	}

	e.account.Balance++
	if e.account.LookupsUsed > 0 {
		e.account.LookupsUsed--
	}
	e.account.LastActivityAt = l.now().UTC()
	l.persistSave(ctx, e.account)

	return e.account, true
}

// Credit adds amount credits, creating the account when missing. A non-empty plan replaces the current one.
func (l *Ledger) Credit(ctx context.Context, userID string, amount int64, plan domain.Plan) (domain.Account, error) {
	if amount <= 0 {
		return domain.Account{}, ErrInvalidAmount
	}
	if userID == "" {
		return domain.Account{}, ErrEmptyUserID
	}

	account, _ := l.mutate(ctx, userID, func(a *domain.Account) bool {
		a.Balance += amount
		if plan != "" {
			a.Plan = plan
		}
		return true
	})

	return account, nil
}

// EvictIdle removes accounts whose last activity is older than now-threshold from memory and the store.
func (l *Ledger) EvictIdle(ctx context.Context, now time.Time, threshold time.Duration) int {
	if threshold <= 0 {
		threshold = DefaultIdleThreshold
	}
	cutoff := now.Add(-threshold)

	removed := 0
	for _, s := range l.shards {
		s.mu.RLock()
		candidates := make([]*entry, 0)
		for _, e := range s.entries {
			candidates = append(candidates, e)
		}
		s.mu.RUnlock()

		for _, e := range candidates {
			if l.evictEntry(ctx, s, e, cutoff) {
				removed++
			}
		}
	}

	if removed > 0 {
		accountsEvictedTotal.Add(float64(removed))
		l.log.Info("evicted idle accounts", slog.Int("count", removed), slog.Time("cutoff", cutoff))
	}

	return removed
}

func (l *Ledger) evictEntry(ctx context.Context, s *accountShard, e *entry, cutoff time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.evicted || !e.account.IdleSince(cutoff) {
		return false
	}

	userID := e.account.UserID
	s.mu.Lock()
	if s.entries[userID] == e {
		delete(s.entries, userID)
	}
	s.mu.Unlock()
	e.evicted = true

	l.persistDelete(ctx, userID)
	return true
}

// mutate applies fn to the user's account under its lock. When fn reports a change the activity
// timestamp is refreshed and the account is written through before the lock is released.
func (l *Ledger) mutate(ctx context.Context, userID string, fn func(*domain.Account) bool) (domain.Account, bool) {
	for {
		e, created := l.entryFor(userID)
		if !created {
			e.mu.Lock()
		}

		if e.evicted {
			e.mu.Unlock()
			continue
		}

		changed := fn(&e.account) || created
		if changed {
			e.account.LastActivityAt = l.now().UTC()
			l.persistSave(ctx, e.account)
		}

		account := e.account
		e.mu.Unlock()
		return account, changed
	}
}

// entryFor returns the entry for userID. A freshly created entry is returned already locked.
func (l *Ledger) entryFor(userID string) (*entry, bool) {
	s := l.shardFor(userID)

	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if ok {
		return e, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[userID]; ok {
		return e, false
	}

	now := l.now().UTC()
	e = &entry{account: domain.Account{
		UserID:         userID,
		Balance:        l.startingBalance,
		Plan:           domain.PlanFree,
		JoinedAt:       now,
		LastActivityAt: now,
	}}
	e.mu.Lock()
	s.entries[userID] = e

	return e, true
}

func (l *Ledger) shardFor(userID string) *accountShard {
	return l.shards[shard.Index(userID, len(l.shards))]
}
