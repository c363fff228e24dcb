package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the grievance
// pipeline and HTTP layer.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	escalations     *prometheus.CounterVec
	sweepRuns       prometheus.Counter
	sweepEscalated  prometheus.Counter
	sweepDuration   prometheus.Histogram
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedback_submissions_total",
		Help: "Feedback submissions by outcome (created, duplicate, rejected, moderation_unavailable)",
	}, []string{"outcome"})

	escalations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "issue_escalations_total",
		Help: "Issue escalations by trigger (manual, automatic)",
	}, []string{"trigger"})

	sweepRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sla_sweep_runs_total",
		Help: "Completed SLA breach sweep runs",
	})

	sweepEscalated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sla_sweep_escalated_total",
		Help: "Issues escalated by breach sweeps",
	})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sla_sweep_duration_seconds",
		Help:    "Duration of SLA breach sweeps",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, submissions, escalations, sweepRuns, sweepEscalated, sweepDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		submissions:     submissions,
		escalations:     escalations,
		sweepRuns:       sweepRuns,
		sweepEscalated:  sweepEscalated,
		sweepDuration:   sweepDuration,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveHTTPRequest records one HTTP request observation.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.requestDuration.With(labels).Observe(duration.Seconds())
	m.requestTotal.With(labels).Inc()
}

// CountSubmission records one feedback submission outcome.
func (m *MetricsService) CountSubmission(outcome string) {
	m.submissions.WithLabelValues(outcome).Inc()
}

// CountEscalation records one escalation by trigger source.
func (m *MetricsService) CountEscalation(trigger string) {
	m.escalations.WithLabelValues(trigger).Inc()
}

// ObserveSweep records one completed breach sweep.
func (m *MetricsService) ObserveSweep(escalated int, duration time.Duration) {
	m.sweepRuns.Inc()
	m.sweepEscalated.Add(float64(escalated))
	m.sweepDuration.Observe(duration.Seconds())
}
