// Package metrics exposes Prometheus counters for request transitions, stock
// movement and HTTP traffic.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aaal/envanter/internal/lifecycle"
)

const namespace = "envanter"

// otherRoute labels requests that match no registered route.
const otherRoute = "other"

// Router reports the pattern a request would be routed to, empty when none
// matches. *http.ServeMux implements it.
type Router interface {
	Handler(r *http.Request) (h http.Handler, pattern string)
}

// Metrics owns a private registry so tests and multiple servers do not share
// global state.
type Metrics struct {
	registry *prometheus.Registry

	transitions   *prometheus.CounterVec
	stockMoved    *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// New registers all collectors, including the Go runtime and process ones.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_transitions_total",
			Help:      "Committed material request transitions by action.",
		}, []string{"action"}),
		stockMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_units_moved_total",
			Help:      "Item units taken out of or put back into stock by request transitions.",
		}, []string{"direction"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status class.",
		}, []string{"method", "path", "status"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.transitions,
		m.stockMoved,
		m.httpRequests,
		m.httpDurations,
	)
	return m
}

// OnTransition counts a committed transition and the stock it moved.
func (m *Metrics) OnTransition(_ context.Context, ev lifecycle.Event) {
	m.transitions.WithLabelValues(string(ev.Kind)).Inc()
	switch {
	case ev.StockDelta < 0:
		m.stockMoved.WithLabelValues("out").Add(float64(-ev.StockDelta))
	case ev.StockDelta > 0:
		m.stockMoved.WithLabelValues("in").Add(float64(ev.StockDelta))
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records count and latency of every request passing through.
// Requests are labelled with the route pattern routes resolves for them, so
// the number of series is bounded by the number of registered routes.
func (m *Metrics) Middleware(routes Router, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := routeOf(routes, r)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		m.httpRequests.WithLabelValues(r.Method, path, statusClass(rec.status)).Inc()
		m.httpDurations.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routeOf returns the path part of the pattern matching r, or otherRoute.
func routeOf(routes Router, r *http.Request) string {
	_, pattern := routes.Handler(r)
	if pattern == "" {
		return otherRoute
	}
	// Drop the method from patterns such as "GET /api/items".
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		pattern = pattern[i+1:]
	}
	return pattern
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// statusClass folds a status code into 2xx, 3xx, 4xx or 5xx.
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
