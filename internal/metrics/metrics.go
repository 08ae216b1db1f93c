// ABOUTME: Prometheus registry with backend, HTTP and reconcile collectors
// ABOUTME: Implements sheet.Observer and provides chi middleware

package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/famlink/internal/sheet"
)

// Registry holds every famlink collector.
type Registry struct {
	reg *prometheus.Registry

	remoteCalls    *prometheus.CounterVec
	remoteDuration *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	reconciles     *prometheus.CounterVec
}

// New creates a registry with process and Go runtime collectors.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		remoteCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "famlink_remote_calls_total",
			Help: "Spreadsheet backend calls by operation and result",
		}, []string{"op", "result"}),
		remoteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "famlink_remote_call_duration_seconds",
			Help:    "Spreadsheet backend call latency",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "famlink_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "famlink_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		reconciles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "famlink_reconcile_total",
			Help: "Relationship reconcile calls by outcome",
		}, []string{"result"}),
	}
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the scrape endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveRemoteCall implements sheet.Observer.
func (r *Registry) ObserveRemoteCall(op string, elapsed time.Duration, err error) {
	r.remoteCalls.WithLabelValues(op, remoteResult(err)).Inc()
	r.remoteDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

var _ sheet.Observer = (*Registry)(nil)

func remoteResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, sheet.ErrTabNotFound):
		return "tab_not_found"
	default:
		return "error"
	}
}

// ObserveReconcile counts one reconcile outcome (ok, spouse_unavailable,
// partial, error).
func (r *Registry) ObserveReconcile(result string) {
	r.reconciles.WithLabelValues(result).Inc()
}

// Middleware records request counts and latency by chi route pattern.
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.httpRequests.WithLabelValues(req.Method, route, strconv.Itoa(status)).Inc()
		r.httpDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
	})
}
