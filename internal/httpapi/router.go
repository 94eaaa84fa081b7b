// Package httpapi exposes the event endpoint, the admin surface and operational routes over HTTP.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/phonelookup/internal/analytics"
	apperrors "github.com/Proton-105/phonelookup/internal/errors"
	"github.com/Proton-105/phonelookup/internal/idempotency"
	"github.com/Proton-105/phonelookup/internal/ledger"
	"github.com/Proton-105/phonelookup/internal/lifecycle"
	"github.com/Proton-105/phonelookup/internal/middleware"
	"github.com/Proton-105/phonelookup/internal/service"
	"github.com/Proton-105/phonelookup/pkg/logger"
)

const maxBodyBytes = 16 << 10

// Deps are the collaborators the router dispatches to. Optional fields may be nil.
type Deps struct {
	Service        *service.Service
	Ledger         *ledger.Ledger
	Analytics      *analytics.Sink
	Idempotency    idempotency.Manager
	IdempotencyTTL time.Duration
	Probes         lifecycle.HealthChecker
	Ingress        *TokenSet
	Admin          *AdminAuth
	AdminLimit     *middleware.RateLimitMiddleware
	Errors         *apperrors.Handler
	IdleThreshold  time.Duration
	Now            func() time.Time
	Log            *slog.Logger
}

type api struct {
	Deps
	validate *validator.Validate
}

// NewRouter builds the chi router serving every public route.
func NewRouter(deps Deps) http.Handler {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Errors == nil {
		deps.Errors = apperrors.NewHandler(deps.Log, false)
	}
	if deps.IdempotencyTTL <= 0 {
		deps.IdempotencyTTL = idempotency.DefaultRecordTTL
	}
	if deps.IdleThreshold <= 0 {
		deps.IdleThreshold = ledger.DefaultIdleThreshold
	}

	a := &api{Deps: deps, validate: validator.New()}

	r := chi.NewRouter()
	r.Use(
		chimw.RealIP,
		logger.Middleware,
		middleware.RequestLogger(deps.Log),
		chimw.Recoverer,
	)

	r.Get("/healthz", a.healthz)
	r.Get("/livez", a.livez)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.With(a.Ingress.Middleware).Post("/events", a.postEvent)

		r.Route("/admin", func(r chi.Router) {
			if a.AdminLimit != nil {
				r.Use(a.AdminLimit.Handle)
			}
			r.Use(a.Admin.Middleware)
			r.Use(middleware.Idempotency(a.Idempotency, a.IdempotencyTTL, a.Log))

			r.Post("/credits", a.postCredits)
			r.Get("/accounts/{userID}", a.getAccount)
			r.Get("/stats", a.getStats)
			r.Post("/evictions", a.postEvictions)
		})
	})

	return r
}
