// Package metrics provides observability for the profile server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tokenprofile"

// Collector gathers the server's Prometheus metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	storeOps      *prometheus.CounterVec
	storeLatency  *prometheus.HistogramVec
	visibility    *prometheus.CounterVec
	selections    *prometheus.CounterVec
	eventsWritten prometheus.Counter
	eventErrors   prometheus.Counter
	wsConnections prometheus.Gauge
	wsMessages    *prometheus.CounterVec
	wsErrors      prometheus.Counter
}

// NewCollector creates a collector with a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		storeOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Profile store mutations by operation and result.",
		}, []string{"op", "result"}),
		storeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_seconds",
			Help:      "Latency of profile store mutations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		visibility: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paragraph_visibility_total",
			Help:      "Paragraph visibility verdicts.",
		}, []string{"visible"}),
		selections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_selections_total",
			Help:      "Profile selections by the strategy that decided them.",
		}, []string{"strategy"}),
		eventsWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_written_total",
			Help:      "Change events appended to the log.",
		}),
		eventErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_write_errors_total",
			Help:      "Change events that failed to persist.",
		}),
		wsConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Active WebSocket connections.",
		}),
		wsMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction.",
		}, []string{"direction"}),
		wsErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_errors_total",
			Help:      "WebSocket read and write errors.",
		}),
	}
}

// Global collector instance
var collector = NewCollector()

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordStoreOp records a store mutation. result is "ok" or an error class.
func (c *Collector) RecordStoreOp(op, result string, latency time.Duration) {
	c.storeOps.WithLabelValues(op, result).Inc()
	c.storeLatency.WithLabelValues(op).Observe(latency.Seconds())
}

// RecordVisibility records one paragraph verdict.
func (c *Collector) RecordVisibility(visible bool) {
	if visible {
		c.visibility.WithLabelValues("true").Inc()
	} else {
		c.visibility.WithLabelValues("false").Inc()
	}
}

// RecordSelection records which selection strategy produced a profile.
func (c *Collector) RecordSelection(strategy string) {
	c.selections.WithLabelValues(strategy).Inc()
}

// RecordEventWrite records an event append.
func (c *Collector) RecordEventWrite(err error) {
	c.eventsWritten.Inc()
	if err != nil {
		c.eventErrors.Inc()
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int) {
	c.wsConnections.Add(float64(delta))
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		c.wsMessages.WithLabelValues("in").Inc()
	} else {
		c.wsMessages.WithLabelValues("out").Inc()
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	c.wsErrors.Inc()
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
