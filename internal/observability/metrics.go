package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "duty_roster"

// Metrics owns a private Prometheus registry. All methods are safe on a nil
// receiver so services can run without instrumentation.
type Metrics struct {
	reg *prometheus.Registry

	slotsProcessed  *prometheus.CounterVec
	dutiesAssigned  prometheus.Counter
	reassignments   *prometheus.CounterVec
	transfers       *prometheus.CounterVec
	pastDuties      prometheus.Counter
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorCount      *prometheus.CounterVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		slotsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duty_slots_processed_total",
			Help:      "Duty slots processed by outcome (fulfilled, partial, failed).",
		}, []string{"status"}),
		dutiesAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duties_assigned_total",
			Help:      "Individual duties committed by the assignment engine.",
		}),
		reassignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duty_reassignments_total",
			Help:      "Per-duty redistribution outcomes (reassigned, failed, retained).",
		}, []string{"outcome"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duty_transfers_total",
			Help:      "Manual transfer outcomes by result code.",
		}, []string{"outcome"}),
		pastDuties: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "past_duties_cleared_total",
			Help:      "Duties removed by past-duty cleanup.",
		}),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "HTTP error responses by error code.",
		}, []string{"method", "path", "code"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.slotsProcessed,
		m.dutiesAssigned,
		m.reassignments,
		m.transfers,
		m.pastDuties,
		m.requestCount,
		m.requestDuration,
		m.errorCount,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// RecordSlot counts one processed slot and the duties placed in it.
func (m *Metrics) RecordSlot(status string, assigned int) {
	if m == nil {
		return
	}
	m.slotsProcessed.WithLabelValues(status).Inc()
	m.dutiesAssigned.Add(float64(assigned))
}

// RecordReassignment counts one duty outcome of a redistribution.
func (m *Metrics) RecordReassignment(outcome string) {
	if m == nil {
		return
	}
	m.reassignments.WithLabelValues(outcome).Inc()
}

// RecordTransfer counts one manual transfer by outcome.
func (m *Metrics) RecordTransfer(outcome string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordPastDutiesCleared(n int) {
	if m == nil {
		return
	}
	m.pastDuties.Add(float64(n))
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(method, path, code).Inc()
}
