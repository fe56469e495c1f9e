package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics for the application.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	postingsAccepted prometheus.Counter
	postingsRejected *prometheus.CounterVec
	interestPosted   prometheus.Counter
	jobsTotal        *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cbs_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cbs_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	accepted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cbs_postings_accepted_total",
		Help: "Ledger transactions accepted and committed.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cbs_postings_rejected_total",
		Help: "Ledger postings rejected, by failure kind.",
	}, []string{"kind"})
	interestPosted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cbs_interest_accruals_posted_total",
		Help: "Interest accruals flipped to posted.",
	})
	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cbs_jobs_total",
		Help: "Background job executions by task and outcome.",
	}, []string{"task", "status"})
	registry.MustRegister(requests, duration, accepted, rejected, interestPosted, jobs)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		postingsAccepted: accepted,
		postingsRejected: rejected,
		interestPosted:   interestPosted,
		jobsTotal:        jobs,
	}
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

// Middleware records metrics for every HTTP request.
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

// PostingAccepted counts a committed ledger transaction.
func (m *Metrics) PostingAccepted() {
	if m == nil {
		return
	}
	m.postingsAccepted.Inc()
}

// PostingRejected counts a rejected posting by failure kind.
func (m *Metrics) PostingRejected(kind string) {
	if m == nil {
		return
	}
	m.postingsRejected.WithLabelValues(kind).Inc()
}

// InterestPosted counts an interest accrual reaching the ledger.
func (m *Metrics) InterestPosted() {
	if m == nil {
		return
	}
	m.interestPosted.Inc()
}

// JobRan counts a background job execution.
func (m *Metrics) JobRan(task, status string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(task, status).Inc()
}

// Registerer exposes the registry for registering custom metrics.
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
