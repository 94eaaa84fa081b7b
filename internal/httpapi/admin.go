package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Proton-105/phonelookup/internal/domain"
	apperrors "github.com/Proton-105/phonelookup/internal/errors"
	"github.com/Proton-105/phonelookup/internal/middleware"
)

type creditRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
	Amount int64  `json:"amount" validate:"gt=0,lte=1000000"`
	Plan   string `json:"plan" validate:"omitempty,oneof=free paid"`
}

type evictionRequest struct {
	IdleThreshold string `json:"idle_threshold"`
}

type evictionResponse struct {
	Removed   int    `json:"removed"`
	Threshold string `json:"threshold"`
}

type statsResponse struct {
	Accounts  int         `json:"accounts"`
	Analytics interface{} `json:"analytics,omitempty"`
}

func (a *api) postCredits(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := a.decode(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		a.writeError(w, r, apperrors.NewValidationError("user_id is required"))
		return
	}

	var plan domain.Plan
	if req.Plan != "" {
		parsed, err := domain.ParsePlan(req.Plan)
		if err != nil {
			a.writeError(w, r, apperrors.NewValidationError(err.Error()))
			return
		}
		plan = parsed
	}

	account, err := a.Ledger.Credit(r.Context(), userID, req.Amount, plan)
	if err != nil {
		a.writeError(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	a.Log.InfoContext(r.Context(), "credits granted",
		slog.String("admin", AdminSubject(r.Context())),
		slog.String("user_id", account.UserID),
		slog.Int64("amount", req.Amount),
		slog.Int64("balance", account.Balance),
	)
	middleware.WriteJSON(w, http.StatusOK, account)
}

func (a *api) getAccount(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	account, ok := a.Ledger.Get(userID)
	if !ok {
		a.writeError(w, r, apperrors.NewNotFoundError("account"))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, account)
}

func (a *api) getStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Accounts: a.Ledger.Len()}
	if a.Analytics != nil {
		resp.Analytics = a.Analytics.Snapshot(a.Now())
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// postEvictions runs an idle sweep immediately. The body is optional and may override the
// configured idle threshold.
func (a *api) postEvictions(w http.ResponseWriter, r *http.Request) {
	threshold := a.IdleThreshold

	var req evictionRequest
	if err := a.decode(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		a.writeError(w, r, err)
		return
	}
	if req.IdleThreshold != "" {
		parsed, err := time.ParseDuration(req.IdleThreshold)
		if err != nil || parsed <= 0 {
			a.writeError(w, r, apperrors.NewValidationError("idle_threshold must be a positive duration"))
			return
		}
		threshold = parsed
	}

	removed := a.Ledger.EvictIdle(r.Context(), a.Now(), threshold)
	a.Log.InfoContext(r.Context(), "manual eviction",
		slog.String("admin", AdminSubject(r.Context())),
		slog.Int("removed", removed),
		slog.Duration("threshold", threshold),
	)
	middleware.WriteJSON(w, http.StatusOK, evictionResponse{Removed: removed, Threshold: threshold.String()})
}
