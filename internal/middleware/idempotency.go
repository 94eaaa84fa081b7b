package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Proton-105/phonelookup/internal/idempotency"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 128
)

var errNotCacheable = errors.New("response not cacheable")

// captureWriter buffers a handler's response so it can be stored before it is sent.
type captureWriter struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{header: make(http.Header), status: http.StatusOK}
}

func (c *captureWriter) Header() http.Header {
	return c.header
}

func (c *captureWriter) WriteHeader(status int) {
	if c.wroteHeader {
		return
	}
	c.status = status
	c.wroteHeader = true
}

func (c *captureWriter) Write(b []byte) (int, error) {
	c.wroteHeader = true
	return c.body.Write(b)
}

func (c *captureWriter) contentType() string {
	return c.header.Get("Content-Type")
}

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key on the same
// method and path. Requests without the header pass through. 5xx answers are not stored.
func Idempotency(manager idempotency.Manager, ttl time.Duration, log *slog.Logger) func(http.Handler) http.Handler {
	if manager == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLen {
				WriteError(w, http.StatusBadRequest, "invalid_idempotency_key", "Idempotency-Key is too long")
				return
			}

			scoped := idempotency.GenerateKey("http", r.Method, r.URL.Path, key)

			var captured *captureWriter
			result, err := manager.Execute(r.Context(), scoped, ttl, func(ctx context.Context) (interface{}, error) {
				captured = newCaptureWriter()
				next.ServeHTTP(captured, r.WithContext(ctx))

				if captured.status >= http.StatusInternalServerError {
					return nil, errNotCacheable
				}
				return cachedResponse{
					Status:      captured.status,
					ContentType: captured.contentType(),
					Body:        captured.body.Bytes(),
				}, nil
			})

			switch {
			case errors.Is(err, idempotency.ErrRequestInProgress):
				WriteError(w, http.StatusConflict, "request_in_progress", "A request with this Idempotency-Key is still being processed")
				return
			case errors.Is(err, idempotency.ErrStoreUnavailable):
				log.Warn("idempotency store unavailable, serving without replay", slog.String("path", r.URL.Path), slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			case errors.Is(err, errNotCacheable):
				replay(w, captured.status, captured.contentType(), captured.body.Bytes(), false)
				return
			case err != nil:
				log.Error("idempotency store failed", slog.String("path", r.URL.Path), slog.Any("error", err))
				if captured != nil {
					replay(w, captured.status, captured.contentType(), captured.body.Bytes(), false)
					return
				}
				WriteError(w, http.StatusServiceUnavailable, "idempotency_unavailable", "Please retry later")
				return
			}

			var cached cachedResponse
			if err := json.Unmarshal(result.Response, &cached); err != nil {
				log.Error("corrupt idempotent response", slog.String("path", r.URL.Path), slog.Any("error", err))
				WriteError(w, http.StatusInternalServerError, "internal", "Something went wrong, please try again later")
				return
			}
			replay(w, cached.Status, cached.ContentType, cached.Body, result.FromCache)
		})
	}
}

func replay(w http.ResponseWriter, status int, contentType string, body []byte, fromCache bool) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if fromCache {
		w.Header().Set(ReplayedHeader, "true")
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
