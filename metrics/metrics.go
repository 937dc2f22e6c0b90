// Package metrics exposes registry activity to Prometheus.
//
// A nil *Metrics is valid and records nothing, so callers never need to
// check whether metrics were configured.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orbd"

type Metrics struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	servers    prometheus.Gauge
	flushes    prometheus.Histogram
	rejected   prometheus.Counter
}

// New registers the registry collectors, plus the Go and process
// collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Repository operations by name and result.",
		}, []string{"op", "result"}),
		servers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_servers",
			Help:      "Servers currently registered.",
		}),
		flushes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Time spent persisting the registry.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_connections_throttled_total",
			Help:      "Accepted connections delayed by the rate limiter.",
		}),
	}
	m.registry.MustRegister(
		m.operations,
		m.servers,
		m.flushes,
		m.rejected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Operation counts one repository call under a result label such as "ok"
// or "not_registered".
func (m *Metrics) Operation(op, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) SetServers(n int) {
	if m == nil {
		return
	}
	m.servers.Set(float64(n))
}

func (m *Metrics) ObserveFlush(d time.Duration) {
	if m == nil {
		return
	}
	m.flushes.Observe(d.Seconds())
}

func (m *Metrics) Throttled() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
