// Package service turns transport events into ledger and lookup operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Proton-105/phonelookup/internal/analytics"
	"github.com/Proton-105/phonelookup/internal/domain"
	apperrors "github.com/Proton-105/phonelookup/internal/errors"
	"github.com/Proton-105/phonelookup/internal/ledger"
	"github.com/Proton-105/phonelookup/internal/lookup"
)

// ErrUnknownCommand is returned for commands the service does not handle.
var ErrUnknownCommand = errors.New("unknown command")

// Service coordinates the ledger and the lookup gateway.
type Service struct {
	ledger              *ledger.Ledger
	gateway             lookup.Gateway
	sink                *analytics.Sink
	refundOnUnavailable bool
	now                 func() time.Time
	log                 *slog.Logger
}

type Option func(*Service)

func WithAnalytics(sink *analytics.Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithRefundOnUnavailable returns the credit taken for a lookup that ended in ServiceUnavailable.
func WithRefundOnUnavailable(enabled bool) Option {
	return func(s *Service) { s.refundOnUnavailable = enabled }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func New(l *ledger.Ledger, gateway lookup.Gateway, opts ...Option) *Service {
	s := &Service{
		ledger:              l,
		gateway:             gateway,
		refundOnUnavailable: true,
		now:                 time.Now,
		log:                 slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle executes one event. Expected outcomes such as RateLimited are reported in the
// response; an error means the event itself was unusable.
func (s *Service) Handle(ctx context.Context, ev domain.Event) (*domain.Response, error) {
	userID := strings.TrimSpace(ev.UserID)
	if userID == "" {
		return nil, apperrors.NewValidationError("user_id is required")
	}

	now := s.now()
	if s.sink != nil {
		s.sink.RecordActive(userID, now)
	}

	switch strings.ToLower(strings.TrimSpace(ev.Command)) {
	case domain.CommandStart, domain.CommandBalance:
		account := s.ledger.GetOrCreate(ctx, userID)
		return &domain.Response{
			Outcome:          domain.OutcomeSuccess,
			BalanceRemaining: account.Balance,
			Account:          &account,
		}, nil
	case domain.CommandLookup:
		return s.lookup(ctx, userID, ev.Argument, now), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, ev.Command)
	}
}

// lookup applies the rate limit and the balance check before any external call is made.
func (s *Service) lookup(ctx context.Context, userID, argument string, at time.Time) *domain.Response {
	account := s.ledger.GetOrCreate(ctx, userID)

	if !s.ledger.CheckRateLimit(ctx, userID, at) {
		return s.finish(ctx, userID, domain.OutcomeRateLimited, account.Balance, nil)
	}

	number, err := lookup.SanitizeNumber(argument)
	if err != nil {
		return s.finish(ctx, userID, domain.OutcomeInvalidNumber, account.Balance, nil)
	}

	account, ok := s.ledger.TryDebit(ctx, userID)
	if !ok {
		return s.finish(ctx, userID, domain.OutcomeInsufficientBalance, account.Balance, nil)
	}

	// The credit is already taken; abandoning the request must not leave the call half done.
	raw, err := s.gateway.Validate(context.WithoutCancel(ctx), number)
	switch {
	case err == nil:
		data := lookup.Normalize(raw)
		return s.finish(ctx, userID, domain.OutcomeSuccess, account.Balance, &data)
	case errors.Is(err, lookup.ErrInvalidNumber):
		return s.finish(ctx, userID, domain.OutcomeInvalidNumber, account.Balance, nil)
	default:
		if !errors.Is(err, lookup.ErrServiceUnavailable) {
			s.log.ErrorContext(ctx, "unexpected gateway error", slog.String("user_id", userID), slog.Any("error", err))
		}
		if s.refundOnUnavailable {
			if refunded, ok := s.ledger.Refund(ctx, userID); ok {
				account = refunded
			} else {
				s.log.WarnContext(ctx, "refund skipped, account no longer held", slog.String("user_id", userID))
			}
		}
		return s.finish(ctx, userID, domain.OutcomeServiceUnavailable, account.Balance, nil)
	}
}

func (s *Service) finish(ctx context.Context, userID string, outcome domain.Outcome, balance int64, data *domain.LookupData) *domain.Response {
	country := ""
	resp := &domain.Response{Outcome: outcome, BalanceRemaining: balance}
	if data != nil {
		resp.Data = data
		country = data.CountryCode
	}

	if s.sink != nil {
		s.sink.RecordLookup(outcome, country)
	}

	s.log.InfoContext(ctx, "lookup handled",
		slog.String("user_id", userID),
		slog.String("outcome", string(outcome)),
		slog.Int64("balance", balance),
	)

	return resp
}
