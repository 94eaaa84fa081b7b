// Package metrics holds process-wide Prometheus series that are not owned by a single package.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests labeled by route, method and status",
		},
		[]string{"route", "method", "status"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by code and severity",
		},
		[]string{"code", "severity"},
	)
	ledgerAccounts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_accounts",
			Help: "Accounts currently held by the in-memory ledger",
		},
	)
	rateWindows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ratelimit_memory_windows",
			Help: "Live fixed-window counters in the in-memory limiter",
		},
	)
	jobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_runs_total",
			Help: "Background job executions by job and status",
		},
		[]string{"job", "status"},
	)
)

// RecordRequest increments request counters and records duration.
func RecordRequest(route, method string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}

	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordError increments error counters with metadata.
func RecordError(code, severity string) {
	if code == "" {
		code = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(code, severity).Inc()
}

// RecordJob counts a background job run.
func RecordJob(job string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	jobRunsTotal.WithLabelValues(job, status).Inc()
}

func SetLedgerAccounts(count int) {
	ledgerAccounts.Set(float64(count))
}

func SetRateWindows(count int) {
	rateWindows.Set(float64(count))
}
