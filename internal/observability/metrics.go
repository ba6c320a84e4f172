package observability

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides prometheus counters for the API and background workers.
// A nil *Metrics records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	reqTotal    *prometheus.CounterVec
	reqLatency  *prometheus.HistogramVec
	errTotal    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	breaches    prometheus.Counter
	snapshots   *prometheus.CounterVec
	notifyFail  *prometheus.CounterVec
}

// NewMetrics registers the collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		reqTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_requests_total", Help: "Total number of HTTP requests."},
			[]string{"route", "method", "status"},
		),
		reqLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		errTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_errors_total", Help: "Error responses by domain error code."},
			[]string{"route", "method", "code"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ticket_transitions_total", Help: "Ticket transitions by kind and outcome."},
			[]string{"kind", "outcome"},
		),
		breaches: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "ticket_sla_breaches_total", Help: "SLA breaches recorded."},
		),
		snapshots: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ticket_snapshots_total", Help: "Snapshot reads by actor type."},
			[]string{"actor_type"},
		),
		notifyFail: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ticket_notifications_failed_total", Help: "Failed change notifications by sink."},
			[]string{"sink"},
		),
	}
	reg.MustRegister(
		m.reqTotal, m.reqLatency, m.errTotal, m.transitions, m.breaches, m.snapshots, m.notifyFail,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.reqTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.reqLatency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errTotal.WithLabelValues(route, method, code).Inc()
}

// RecordTransition counts a transition attempt. outcome is "ok" or an error code.
func (m *Metrics) RecordTransition(kind, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(kind, outcome).Inc()
}

// RecordBreach counts a recorded SLA breach.
func (m *Metrics) RecordBreach() {
	if m == nil {
		return
	}
	m.breaches.Inc()
}

// RecordSnapshot counts a snapshot read.
func (m *Metrics) RecordSnapshot(actorType string) {
	if m == nil {
		return
	}
	m.snapshots.WithLabelValues(actorType).Inc()
}

// RecordNotifyFailure counts a failed publish to sink.
func (m *Metrics) RecordNotifyFailure(sink string) {
	if m == nil {
		return
	}
	m.notifyFail.WithLabelValues(sink).Inc()
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	if m == nil {
		return func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) }
	}
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
