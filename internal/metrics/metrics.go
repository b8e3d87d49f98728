// Package metrics exposes Prometheus instrumentation for checkouts, the
// outbox relay and the HTTP API.
//
// Each Metrics owns its own registry so tests can create as many as they
// like. All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pos"

// Metrics holds every collector the service reports.
type Metrics struct {
	registry *prometheus.Registry

	ordersPlaced     prometheus.Counter
	orderFailures    *prometheus.CounterVec
	unitsAllocated   prometheus.Counter
	checkoutDuration prometheus.Histogram

	outboxPublished prometheus.Counter
	outboxFailed    prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// New creates and registers all collectors, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders committed by the fulfillment transaction.",
		}),
		orderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_failures_total",
			Help:      "Checkouts rolled back, by error kind.",
		}, []string{"kind"}),
		unitsAllocated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_units_allocated_total",
			Help:      "Stock units consumed from inventory batches by committed orders.",
		}),
		checkoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_seconds",
			Help:      "Wall time of the fulfillment transaction.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		outboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox events delivered to the publisher.",
		}),
		outboxFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_failures_total",
			Help:      "Outbox publish attempts that failed and stay pending.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ordersPlaced, m.orderFailures, m.unitsAllocated, m.checkoutDuration,
		m.outboxPublished, m.outboxFailed,
		m.httpRequests, m.httpLatency,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// OrderPlaced records a committed checkout.
func (m *Metrics) OrderPlaced(units int, d time.Duration) {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
	m.unitsAllocated.Add(float64(units))
	m.checkoutDuration.Observe(d.Seconds())
}

// OrderFailed records a rolled back checkout.
func (m *Metrics) OrderFailed(kind string, d time.Duration) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "UNKNOWN"
	}
	m.orderFailures.WithLabelValues(kind).Inc()
	m.checkoutDuration.Observe(d.Seconds())
}

// OutboxPublished records delivered outbox events.
func (m *Metrics) OutboxPublished(n int) {
	if m == nil {
		return
	}
	m.outboxPublished.Add(float64(n))
}

// OutboxFailed records a failed publish.
func (m *Metrics) OutboxFailed() {
	if m == nil {
		return
	}
	m.outboxFailed.Inc()
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, statusClass(status)).Inc()
	m.httpLatency.WithLabelValues(route).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
