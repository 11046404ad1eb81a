package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// promMirror mirrors collector observations into a private Prometheus
// registry so a live run can be scraped while the load phase executes.
// The registry is per-collector, so tests never hit duplicate registration.
type promMirror struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newPromMirror() *promMirror {
	registry := prometheus.NewRegistry()

	m := &promMirror{
		registry: registry,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadtest_operations_total",
				Help: "Total operations recorded per metric name",
			},
			[]string{"operation"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadtest_operation_errors_total",
				Help: "Total failed operations per metric name",
			},
			[]string{"operation"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loadtest_operation_duration_ms",
				Help:    "Operation latency in milliseconds",
				Buckets: []float64{1, 5, 15, 30, 50, 100, 200, 500, 1000, 2000, 5000},
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(m.requests, m.errors, m.latency)
	return m
}

func (m *promMirror) observe(name string, elapsedMS float64, success bool) {
	m.requests.WithLabelValues(name).Inc()
	m.latency.WithLabelValues(name).Observe(elapsedMS)
	if !success {
		m.errors.WithLabelValues(name).Inc()
	}
}

func (m *promMirror) count(name string, value int64) {
	m.requests.WithLabelValues(name).Add(float64(value))
}

// Handler returns an HTTP handler exposing the collector's Prometheus view.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.prom.registry, promhttp.HandlerOpts{})
}

// Registry exposes the collector's Prometheus registry for embedding.
func (c *Collector) Registry() *prometheus.Registry {
	return c.prom.registry
}
