package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus series of the ledger API.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	entriesCreated        prometheus.Counter
	entriesValidated      prometheus.Counter
	entriesRejected       *prometheus.CounterVec
	declarationsSubmitted *prometheus.CounterVec
}

// NewMetrics initialises the registry with HTTP and ledger series.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_entries_created_total",
		Help: "Draft entries written.",
	})
	validated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_entries_validated_total",
		Help: "Entries moved from draft to validated.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_entries_rejected_total",
		Help: "Entry writes refused, by reason.",
	}, []string{"reason"})
	submitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_tva_declarations_submitted_total",
		Help: "TVA declarations submitted, by regime.",
	}, []string{"regime"})
	registry.MustRegister(requests, duration, created, validated, rejected, submitted)
	return &Metrics{
		registry:              registry,
		handler:               promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:         requests,
		requestDuration:       duration,
		entriesCreated:        created,
		entriesValidated:      validated,
		entriesRejected:       rejected,
		declarationsSubmitted: submitted,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records a request count and duration per chi route pattern.
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

// Registerer exposes the registry for job collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

func (m *Metrics) EntryCreated() {
	if m != nil {
		m.entriesCreated.Inc()
	}
}

func (m *Metrics) EntryValidated() {
	if m != nil {
		m.entriesValidated.Inc()
	}
}

func (m *Metrics) EntryRejected(reason string) {
	if m != nil {
		m.entriesRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) DeclarationSubmitted(regime string) {
	if m != nil {
		m.declarationsSubmitted.WithLabelValues(regime).Inc()
	}
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
