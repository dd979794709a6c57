package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics are the service metrics for incoming HTTP requests.
type RequestMetrics struct {
	// Counts of requests, by endpoint and status.
	requestCounts *prometheus.CounterVec

	// Latencies of serving requests, by endpoint.
	requestLatencies *prometheus.HistogramVec
}

// NewDefaultRequestMetrics creates request counters and latency histograms
// prefixed with pkg.
func NewDefaultRequestMetrics(pkg string) RequestMetrics {
	return RequestMetrics{
		requestCounts: registerOnce(prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_requests", pkg),
				Help: "How many requests were served, partitioned by endpoint and status.",
			},
			[]string{"endpoint", "status"},
		)),
		requestLatencies: registerOnce(prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: fmt.Sprintf("%s_request_latencies", pkg),
				Help: "How long requests take to serve, partitioned by endpoint.",
			},
			[]string{"endpoint"},
		)),
	}
}

// RequestCounts returns the counter for the given endpoint and status.
func (m RequestMetrics) RequestCounts(endpoint, status string) prometheus.Counter {
	return m.requestCounts.WithLabelValues(endpoint, status)
}

// RequestLatencies returns the latency observer for the given endpoint.
func (m RequestMetrics) RequestLatencies(endpoint string) prometheus.Observer {
	return m.requestLatencies.WithLabelValues(endpoint)
}
