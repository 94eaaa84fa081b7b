package middleware

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Proton-105/phonelookup/internal/ratelimit"
)

// RateLimitMiddleware caps requests per client address on the routes it wraps.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	now     func() time.Time
	log     *slog.Logger
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		now:     time.Now,
		log:     log,
	}
}

// Handle enforces the admin rule keyed by client IP. Limiter failures let the request through.
func (m *RateLimitMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limiter == nil || m.rules == nil {
			next.ServeHTTP(w, r)
			return
		}

		limit, window, err := m.rules.GetAdminLimit()
		if err != nil {
			m.log.Error("failed to load admin rate limit", slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}

		client := clientIP(r)
		now := m.now()
		result, err := m.limiter.Check(r.Context(), "admin:"+client, limit, window, now)
		if err != nil && !errors.Is(err, ratelimit.ErrLimitExceeded) {
			m.log.Warn("rate limiter error", slog.String("client", client), slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}

		if result == nil || !result.Allowed {
			m.log.Warn("rate limit exceeded", slog.String("client", client))
			if result != nil {
				retry := int(result.ResetAt.Sub(now).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retry))
			}
			WriteError(w, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded. Try again later.")
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
