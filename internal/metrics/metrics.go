// Package metrics registers the Prometheus collectors for query execution,
// change persistence and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jbweber/homelab/genrepo/internal/store"
)

var (
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genrepo_queries_total",
			Help: "Number of executed queries by entity kind and status",
		},
		[]string{"kind", "status"},
	)

	rowsMaterialized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genrepo_rows_materialized_total",
			Help: "Number of entities returned by queries",
		},
		[]string{"kind"},
	)

	persistTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genrepo_persist_total",
			Help: "Number of change set writes by status",
		},
		[]string{"status"},
	)

	rowsAffected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "genrepo_rows_affected_total",
			Help: "Number of rows affected by persisted change sets",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genrepo_http_requests_total",
			Help: "Number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genrepo_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Observer records session activity. The zero value is ready to use.
type Observer struct{}

// QueryExecuted implements store.Observer.
func (Observer) QueryExecuted(kind string, rows int, err error) {
	queriesTotal.WithLabelValues(kind, status(err)).Inc()
	if err == nil {
		rowsMaterialized.WithLabelValues(kind).Add(float64(rows))
	}
}

// ChangesPersisted implements store.Observer.
func (Observer) ChangesPersisted(rows int, err error) {
	persistTotal.WithLabelValues(status(err)).Inc()
	if err == nil {
		rowsAffected.Add(float64(rows))
	}
}

var _ store.Observer = Observer{}

// Middleware records request counts and latency labelled by chi route
// pattern, so path parameters do not create new series.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
