package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	entriesPosted    *prometheus.CounterVec
	movementsPosted  *prometheus.CounterVec
	paymentsApplied  prometheus.Counter
	postingConflicts prometheus.Counter
}

// NewMetrics initialises the registry and the base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	entries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_ledger_entries_posted_total",
		Help: "Ledger entries posted by journal.",
	}, []string{"journal"})
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_stock_movements_total",
		Help: "Stock movements recorded by kind.",
	}, []string{"kind"})
	applied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_payments_applied_total",
		Help: "Payments spread over open documents.",
	})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_posting_conflicts_total",
		Help: "Postings rejected on duplicate origin or stock shortage.",
	})
	registry.MustRegister(requests, duration, entries, movements, applied, conflicts)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		entriesPosted:    entries,
		movementsPosted:  movements,
		paymentsApplied:  applied,
		postingConflicts: conflicts,
	}
}

// EntryPosted counts a ledger entry written through the posting hooks.
func (m *Metrics) EntryPosted(journal string) {
	if m == nil {
		return
	}
	m.entriesPosted.WithLabelValues(journal).Inc()
}

// MovementRecorded counts a stock movement written through the posting hooks.
func (m *Metrics) MovementRecorded(kind string) {
	if m == nil {
		return
	}
	m.movementsPosted.WithLabelValues(kind).Inc()
}

// PaymentApplied counts a payment spread over open documents.
func (m *Metrics) PaymentApplied() {
	if m == nil {
		return
	}
	m.paymentsApplied.Inc()
}

// PostingConflict counts a posting skipped on a duplicate origin.
func (m *Metrics) PostingConflict() {
	if m == nil {
		return
	}
	m.postingConflicts.Inc()
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
