package relay

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks relay outcomes per mode (buffered/stream) and status.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	upstreamErrors  *prometheus.CounterVec
	streamBytes     prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "llmrelay",
				Name:      "requests_total",
				Help:      "Relayed requests by relay mode and response status",
			},
			[]string{"mode", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "llmrelay",
				Name:      "request_duration_seconds",
				Help:      "End-to-end relay duration",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"mode"},
		),
		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "llmrelay",
				Name:      "upstream_errors_total",
				Help:      "Failed relays by reason",
			},
			[]string{"reason"},
		),
		streamBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "llmrelay",
				Name:      "stream_bytes_total",
				Help:      "Bytes relayed to callers in streaming mode",
			},
		),
	}
	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.upstreamErrors,
		m.streamBytes,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) ObserveRequest(mode string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(mode, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveError(reason string) {
	m.upstreamErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) AddStreamBytes(n int64) {
	if n > 0 {
		m.streamBytes.Add(float64(n))
	}
}

// Handler serves the Prometheus exposition endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
