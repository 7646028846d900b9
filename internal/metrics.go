package internal

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for HTTP requests and the project
// workflow. It satisfies both service.Recorder and events.Recorder.
type Metrics struct {
	reqTotal   *prometheus.CounterVec
	reqLatency *prometheus.HistogramVec

	created   prometheus.Counter
	conflicts prometheus.Counter
	events    *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new Metrics instance with a private Prometheus registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		reqTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		reqLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "projects_created_total",
			Help: "Projects successfully created",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "project_create_conflicts_total",
			Help: "Create attempts rejected because the name was taken",
		}),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "project_events_published_total",
				Help: "Domain events by delivery result",
			},
			[]string{"topic", "result"},
		),
		registry: registry,
	}

	registry.MustRegister(m.reqTotal, m.reqLatency, m.created, m.conflicts, m.events)
	return m
}

// Middleware returns a Chi middleware that collects metrics
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

			next.ServeHTTP(rw, r)

			// the pattern is only complete after routing has finished
			path := routePattern(r)
			status := strconv.Itoa(rw.code)
			m.reqTotal.WithLabelValues(r.Method, path, status).Inc()
			m.reqLatency.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler returns an http.Handler that serves Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ProjectCreated() { m.created.Inc() }

func (m *Metrics) CreateConflict() { m.conflicts.Inc() }

func (m *Metrics) EventPublished(topic string) { m.events.WithLabelValues(topic, "published").Inc() }

func (m *Metrics) EventFailed(topic string) { m.events.WithLabelValues(topic, "failed").Inc() }

func (m *Metrics) EventDropped(topic string) { m.events.WithLabelValues(topic, "dropped").Inc() }

// statusRecorder captures the HTTP status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.wroteHeader {
		sr.code = code
		sr.wroteHeader = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	sr.wroteHeader = true
	return sr.ResponseWriter.Write(b)
}
