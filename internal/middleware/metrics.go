package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backoffice_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	gateAllowed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backoffice_gate_allowed_total",
			Help: "Total number of requests allowed through the access gate",
		},
	)

	gateDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_gate_denials_total",
			Help: "Total number of access gate denials by check",
		},
		[]string{"check"},
	)

	paymentIntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_payment_intents_total",
			Help: "Total number of payment intent attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// CountPaymentIntent records a payment intent attempt outcome.
func CountPaymentIntent(outcome string) {
	paymentIntentsTotal.WithLabelValues(outcome).Inc()
}

// Metrics returns a middleware that records request counts and latency.
// The chi route pattern is used for the path label to keep cardinality
// bounded.
func Metrics() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}

			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}
