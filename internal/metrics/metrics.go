// Package metrics owns the prometheus collectors of the server. A nil
// *Metrics is valid and records nothing, so components take one optionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the collectors.
type Config struct {
	// Namespace prefixes every metric name (default: "bookshelf").
	Namespace string

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry receives the collectors. Default: a fresh registry that also
	// carries the Go and process collectors.
	Registry *prometheus.Registry
}

// Option configures Metrics.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the registry, mainly for tests.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Metrics holds every collector the server reports.
type Metrics struct {
	registry *prometheus.Registry

	connections         prometheus.Gauge
	connectionsTotal    prometheus.Counter
	connectionsRejected prometheus.Counter
	oversizedMessages   *prometheus.CounterVec
	commandsTotal       *prometheus.CounterVec
	commandDuration     *prometheus.HistogramVec
	catalogRequests     *prometheus.CounterVec
	catalogDuration     *prometheus.HistogramVec
	cacheLookups        *prometheus.CounterVec
	snapshots           *prometheus.CounterVec
	lastSnapshot        prometheus.Gauge
}

// New registers the collectors and returns them.
func New(opts ...Option) *Metrics {
	cfg := Config{
		Namespace: "bookshelf",
		Buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
		cfg.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	factory := promauto.With(cfg.Registry)
	ns := cfg.Namespace

	return &Metrics{
		registry: cfg.Registry,

		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "connections",
			Help:      "Currently open client connections",
		}),
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "connections_total",
			Help:      "Client connections accepted since start",
		}),
		connectionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "connections_rejected_total",
			Help:      "Client connections refused because the server was full",
		}),
		oversizedMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "oversized_messages_total",
			Help:      "Messages longer than the receive buffer, by overflow policy",
		}, []string{"policy"}),
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "commands_total",
			Help:      "Dispatched commands by verb",
		}, []string{"verb"}),
		commandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "command_duration_seconds",
			Help:      "Command handling time by verb",
			Buckets:   cfg.Buckets,
		}, []string{"verb"}),
		catalogRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "catalog_requests_total",
			Help:      "Catalog requests by operation and result",
		}, []string{"op", "result"}),
		catalogDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "catalog_request_duration_seconds",
			Help:      "Catalog request latency by operation",
			Buckets:   cfg.Buckets,
		}, []string{"op"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "detail_cache_lookups_total",
			Help:      "Detail cache lookups by result",
		}, []string{"result"}),
		snapshots: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "snapshots_total",
			Help:      "Artifact snapshot attempts by artifact and result",
		}, []string{"artifact", "result"}),
		lastSnapshot: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "last_snapshot_timestamp_seconds",
			Help:      "Unix time of the last snapshot cycle without failures",
		}),
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ConnectionOpened records an accepted connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
	m.connectionsTotal.Inc()
}

// ConnectionClosed records a released connection.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// ConnectionRejected records a connection refused at the limit.
func (m *Metrics) ConnectionRejected() {
	if m == nil {
		return
	}
	m.connectionsRejected.Inc()
}

// MessageOversized records a message that did not fit the buffer.
func (m *Metrics) MessageOversized(policy string) {
	if m == nil {
		return
	}
	m.oversizedMessages.WithLabelValues(policy).Inc()
}

// ObserveCommand records one dispatched command. Callers pass a bounded verb set.
func (m *Metrics) ObserveCommand(verb string, d time.Duration) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(verb).Inc()
	m.commandDuration.WithLabelValues(verb).Observe(d.Seconds())
}

// ObserveCatalog records one catalog round trip.
func (m *Metrics) ObserveCatalog(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.catalogRequests.WithLabelValues(op, result).Inc()
	m.catalogDuration.WithLabelValues(op).Observe(d.Seconds())
}

// CacheLookup records a detail cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// Snapshot records the outcome of writing one artifact:
// "written", "unchanged" or "failed".
func (m *Metrics) Snapshot(artifact, result string) {
	if m == nil {
		return
	}
	m.snapshots.WithLabelValues(artifact, result).Inc()
}

// SnapshotCompleted stamps a cycle in which no artifact failed.
func (m *Metrics) SnapshotCompleted(at time.Time) {
	if m == nil {
		return
	}
	m.lastSnapshot.Set(float64(at.Unix()))
}
