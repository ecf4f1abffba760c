// Package metrics registers and exposes the Prometheus counters, gauge, and
// histogram the request service emits on every request.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// responseTimeBuckets are the fixed histogram buckets for response latency.
var responseTimeBuckets = []float64{0, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 10, 20, 30, 40, 50, 60, 70}

// Metrics holds the Prometheus instruments C7 updates on every request.
type Metrics struct {
	OpenConnections prometheus.Gauge
	Requests        *prometheus.CounterVec
	Responses       *prometheus.CounterVec
	ResponseTime    *prometheus.HistogramVec
}

// New registers Kansas's metrics with registerer (pass
// prometheus.DefaultRegisterer in production; a fresh prometheus.NewRegistry()
// in tests that run more than once in the same process).
func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		OpenConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kansas_open_connections_total",
			Help: "Number of requests currently being handled.",
		}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kansas_requests_total",
			Help: "Total number of requests received, by method.",
		}, []string{"method"}),
		Responses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kansas_responses_total",
			Help: "Total number of responses sent, by method and status.",
		}, []string{"method", "status"}),
		ResponseTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kansas_response_time_seconds",
			Help:    "Response latency in seconds, by method.",
			Buckets: responseTimeBuckets,
		}, []string{"method"}),
	}
}

// Guard increments OpenConnections and returns a function that decrements
// it; callers defer the returned function immediately so the decrement runs
// on every exit path so the gauge never drifts on an error path.
func (m *Metrics) Guard() func() {
	m.OpenConnections.Inc()
	return m.OpenConnections.Dec
}

// Observe records one completed request's outcome.
func (m *Metrics) Observe(method string, status int, start time.Time) {
	m.Responses.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.ResponseTime.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// Handler returns the standard Prometheus text-exposition handler for
// /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
