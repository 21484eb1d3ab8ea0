package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	syncAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calsync_sync_attempts_total",
			Help: "Sync attempts by provider, performed operation and outcome.",
		},
		[]string{"provider", "operation", "outcome"},
	)

	tokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calsync_token_refresh_total",
			Help: "OAuth token refreshes by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	providerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calsync_provider_request_duration_seconds",
			Help:    "Latency of remote calendar calls in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calsync_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	registerOnce sync.Once
)

// Init registers the metrics in the default registry. Safe to call twice.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(syncAttempts, tokenRefreshes, providerDuration, httpRequestsTotal)
	})
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSync counts one finished orchestrator invocation.
func ObserveSync(provider, operation, outcome string) {
	if provider == "" {
		provider = "none"
	}
	syncAttempts.WithLabelValues(provider, operation, outcome).Inc()
}

// ObserveRefresh counts one token refresh attempt.
func ObserveRefresh(provider string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	tokenRefreshes.WithLabelValues(provider, outcome).Inc()
}

// ObserveProviderCall records the latency of a remote calendar call.
func ObserveProviderCall(provider, operation string, started time.Time) {
	providerDuration.WithLabelValues(provider, operation).Observe(time.Since(started).Seconds())
}

// Instrument counts requests by method, path and status.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(sw.code)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
