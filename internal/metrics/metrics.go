// Package metrics exposes engine counters through a private Prometheus registry.
//
// Every method is safe on a nil *Metrics, so the engine runs unchanged when
// metrics are disabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "moonmock"

// Metrics owns the collectors of one engine
type Metrics struct {
	registry *prometheus.Registry

	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	hits            prometheus.Counter
	misses          prometheus.Counter
	expired         prometheus.Counter
	blocked         prometheus.Gauge
	connected       prometheus.Gauge
	published       prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands processed, by name and result (ok or error)",
		}, []string{"command", "result"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent executing a command inside the engine lock",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		}, []string{"command"}),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyspace_hits_total",
			Help:      "Successful key lookups",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyspace_misses_total",
			Help:      "Key lookups that found nothing",
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_keys_total",
			Help:      "Keys removed because their TTL elapsed",
		}),
		blocked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blocked_clients",
			Help:      "Clients waiting in a blocking command",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_clients",
			Help:      "Open clients, in-process and TCP",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pubsub_messages_total",
			Help:      "Pub/Sub deliveries accepted by subscribers",
		}),
	}

	m.registry.MustRegister(
		m.commands,
		m.commandDuration,
		m.hits,
		m.misses,
		m.expired,
		m.blocked,
		m.connected,
		m.published,
	)
	return m
}

// Registry returns the underlying registry, for tests and custom exporters
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCommand records one executed command
func (m *Metrics) ObserveCommand(name string, failed bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if failed {
		result = "error"
	}
	m.commands.WithLabelValues(name, result).Inc()
	m.commandDuration.WithLabelValues(name).Observe(d.Seconds())
}

// Lookup records a keyspace hit or miss
func (m *Metrics) Lookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.hits.Inc()
		return
	}
	m.misses.Inc()
}

// Expired adds n keys removed by expiry
func (m *Metrics) Expired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}

// Blocked moves the blocked clients gauge by delta
func (m *Metrics) Blocked(delta int) {
	if m == nil {
		return
	}
	m.blocked.Add(float64(delta))
}

// Connected moves the connected clients gauge by delta
func (m *Metrics) Connected(delta int) {
	if m == nil {
		return
	}
	m.connected.Add(float64(delta))
}

// Published adds n accepted pub/sub deliveries
func (m *Metrics) Published(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.published.Add(float64(n))
}
