package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/Proton-105/phonelookup/internal/domain"
	apperrors "github.com/Proton-105/phonelookup/internal/errors"
	"github.com/Proton-105/phonelookup/internal/idempotency"
	"github.com/Proton-105/phonelookup/internal/middleware"
	"github.com/Proton-105/phonelookup/internal/service"
	"github.com/Proton-105/phonelookup/pkg/metrics"
)

// postEvent handles one transport event. Deliveries carrying an event_id run once; repeats
// receive the stored response.
func (a *api) postEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.Event
	if err := a.decode(w, r, &ev); err != nil {
		a.writeError(w, r, err)
		return
	}

	if ev.EventID == "" || a.Idempotency == nil {
		resp, err := a.Service.Handle(r.Context(), ev)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, resp)
		return
	}

	key := idempotency.EventKey(ev.UserID, ev.EventID)
	result, err := a.Idempotency.Execute(r.Context(), key, a.IdempotencyTTL, func(ctx context.Context) (interface{}, error) {
		return a.Service.Handle(ctx, ev)
	})
	if errors.Is(err, idempotency.ErrStoreUnavailable) {
		a.Log.WarnContext(r.Context(), "idempotency store unavailable, handling event without deduplication",
			slog.String("event_id", ev.EventID), slog.Any("error", err))
		resp, err := a.Service.Handle(r.Context(), ev)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, resp)
		return
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if result.FromCache {
		w.Header().Set(middleware.ReplayedHeader, "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Response)
}

var errEmptyBody = apperrors.NewValidationError("request body is required")

func (a *api) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return apperrors.NewValidationError(fmt.Sprintf("malformed request body: %v", err))
	}

	if err := a.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperrors.NewValidationError(fmt.Sprintf("field %s failed %q", verrs[0].Field(), verrs[0].Tag()))
		}
		return apperrors.NewValidationError(err.Error())
	}
	return nil
}

// writeError maps err onto a status code and an error body.
func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownCommand):
		middleware.WriteError(w, http.StatusBadRequest, "unknown_command", "Unknown command")
		return
	case errors.Is(err, idempotency.ErrRequestInProgress):
		middleware.WriteError(w, http.StatusConflict, "request_in_progress", "This event is still being processed")
		return
	}

	message, _ := a.Errors.Handle(r.Context(), err)

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		metrics.RecordError(apperrors.CodeInternal, string(apperrors.SeverityHigh))
		middleware.WriteError(w, http.StatusInternalServerError, apperrors.CodeInternal, message)
		return
	}

	metrics.RecordError(appErr.Code, string(appErr.Severity))
	status := statusFor(appErr.Code)
	if status == http.StatusBadRequest {
		message = appErr.Message
	}
	middleware.WriteError(w, status, appErr.Code, message)
}

func statusFor(code string) int {
	switch code {
	case apperrors.CodeValidation:
		return http.StatusBadRequest
	case apperrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeConflict:
		return http.StatusConflict
	case apperrors.CodePersistence, apperrors.CodeExternalAPI:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *api) healthz(w http.ResponseWriter, r *http.Request) {
	if a.Probes == nil {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if err := a.Probes.Readiness(r.Context()); err != nil {
		a.Log.WarnContext(r.Context(), "readiness check failed", slog.Any("error", err))
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "reason": err.Error()})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) livez(w http.ResponseWriter, r *http.Request) {
	if a.Probes != nil {
		if err := a.Probes.Liveness(r.Context()); err != nil {
			middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
