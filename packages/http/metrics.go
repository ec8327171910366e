package http

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus metrics for the request lifecycle. A nil
// *Metrics records nothing.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	redirectsTotal  prometheus.Counter
	errorsTotal     *prometheus.CounterVec
}

// NewMetrics creates metrics on the default registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates metrics using the supplied registerer.
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	return &Metrics{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "httphelper_requests_total",
				Help: "Total number of hops sent, by method and status code",
			},
			[]string{"method", "status_code"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "httphelper_request_duration_seconds",
				Help:    "Duration of single hops in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		redirectsTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "httphelper_redirects_total",
				Help: "Total number of redirects followed",
			},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "httphelper_errors_total",
				Help: "Total number of failed sends, by kind",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) observe(method Method, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method.String(), strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(method.String()).Observe(d.Seconds())
}

func (m *Metrics) incRedirect() {
	if m == nil {
		return
	}
	m.redirectsTotal.Inc()
}

func (m *Metrics) incError(kind string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(kind).Inc()
}
