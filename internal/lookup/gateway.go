package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/Proton-105/phonelookup/internal/errors"
	"github.com/Proton-105/phonelookup/pkg/config"
)

const (
	DefaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

var (
	gatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_gateway_requests_total",
		Help: "External validation calls by result.",
	}, []string{"result"})

	gatewayRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lookup_gateway_request_duration_seconds",
		Help:    "Latency of external validation calls.",
		Buckets: prometheus.DefBuckets,
	})

	gatewayCircuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lookup_gateway_circuit_state",
		Help: "Circuit breaker state of the validation API (0 closed, 1 open, 2 half-open).",
	})
)

// HTTPGateway calls a numverify-compatible endpoint.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *apperrors.CircuitBreaker
	log     *slog.Logger
}

var _ Gateway = (*HTTPGateway)(nil)

// GatewayOption customizes an HTTPGateway.
type GatewayOption func(*HTTPGateway)

// WithHTTPClient replaces the default client. Its timeout is kept as given.
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *HTTPGateway) {
		if client != nil {
			g.client = client
		}
	}
}

func WithCircuitBreaker(cb *apperrors.CircuitBreaker) GatewayOption {
	return func(g *HTTPGateway) {
		if cb != nil {
			g.breaker = cb
		}
	}
}

// NewHTTPGateway builds a gateway with a hard per-call timeout and a circuit breaker.
func NewHTTPGateway(cfg config.LookupConfig, log *slog.Logger, opts ...GatewayOption) *HTTPGateway {
	if log == nil {
		log = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	g := &HTTPGateway{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.breaker == nil {
		g.breaker = apperrors.NewCircuitBreaker(apperrors.WithStateListener(func(from, to apperrors.State) {
			gatewayCircuitState.Set(float64(to))
			log.Warn("lookup circuit state changed", slog.String("from", from.String()), slog.String("to", to.String()))
		}))
	}

	return g
}

// Validate performs exactly one upstream call. A valid=false answer is ErrInvalidNumber and does not
// count against the circuit; every other failure wraps ErrServiceUnavailable.
func (g *HTTPGateway) Validate(ctx context.Context, phone string) (*RawResponse, error) {
	var (
		raw     *RawResponse
		invalid bool
	)

	started := time.Now()
	err := g.breaker.Call(func() error {
		resp, callErr := g.fetch(ctx, phone)
		if errors.Is(callErr, ErrInvalidNumber) {
			raw, invalid = resp, true
			return nil
		}
		raw = resp
		return callErr
	})
	gatewayRequestDuration.Observe(time.Since(started).Seconds())

	switch {
	case errors.Is(err, apperrors.ErrCircuitOpen), errors.Is(err, apperrors.ErrHalfOpenTooManyRequests):
		gatewayRequestsTotal.WithLabelValues("circuit_open").Inc()
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	case err != nil:
		gatewayRequestsTotal.WithLabelValues("unavailable").Inc()
		g.log.WarnContext(ctx, "lookup call failed", slog.String("number", phone), slog.Any("error", err))
		return nil, err
	case invalid:
		gatewayRequestsTotal.WithLabelValues("invalid").Inc()
		return raw, ErrInvalidNumber
	default:
		gatewayRequestsTotal.WithLabelValues("ok").Inc()
		return raw, nil
	}
}

func (g *HTTPGateway) fetch(ctx context.Context, phone string) (*RawResponse, error) {
	endpoint, err := url.Parse(g.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: bad base url: %v", ErrServiceUnavailable, err)
	}

	query := endpoint.Query()
	query.Set("access_key", g.apiKey)
	query.Set("number", phone)
	query.Set("format", "1")
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrServiceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, redactKey(err, g.apiKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrServiceUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: upstream status %d", ErrServiceUnavailable, resp.StatusCode)
	}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrServiceUnavailable, err)
	}
	if envelope.Error != nil || (envelope.Success != nil && !*envelope.Success) {
		detail := "unknown"
		if envelope.Error != nil {
			detail = fmt.Sprintf("%d %s", envelope.Error.Code, envelope.Error.Type)
		}
		return nil, fmt.Errorf("%w: api error %s", ErrServiceUnavailable, detail)
	}

	var raw RawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrServiceUnavailable, err)
	}

	if !raw.Valid {
		return &raw, ErrInvalidNumber
	}

	return &raw, nil
}

// redactKey strips the access key from transport errors, which echo the request URL.
func redactKey(err error, key string) error {
	var urlErr *url.Error
	if key == "" || !errors.As(err, &urlErr) {
		return err
	}
	return &url.Error{Op: urlErr.Op, URL: "<redacted>", Err: urlErr.Err}
}
