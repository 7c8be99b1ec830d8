package apiclient

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts API calls by outcome and records their latency.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics registers the client metrics on reg. A nil reg uses the default
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fintrack_client_requests_total",
			Help: "API requests issued by the client, by outcome",
		}, []string{"method", "path", "outcome"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fintrack_client_request_duration_seconds",
			Help:    "Latency of API requests issued by the client",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "path"}),
	}
}

func (m *Metrics) observe(method string, path string, outcome string, start time.Time) {
	m.Requests.WithLabelValues(method, path, outcome).Inc()
	m.Duration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
}

// metricsRoute collapses numeric path segments so /expenses/42 and
// /expenses/7 share a series.
func metricsRoute(path string) string {
	path = strings.SplitN(path, "?", 2)[0]
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		if s != "" && strings.Trim(s, "0123456789") == "" {
			segments[i] = ":id"
		}
	}
	return "/" + strings.Join(segments, "/")
}
