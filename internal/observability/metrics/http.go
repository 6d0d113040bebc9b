package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics contains Prometheus metrics for API requests
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	uploadSize      prometheus.Histogram
	registry        *prometheus.Registry
}

// NewHTTPMetrics creates and registers HTTP metrics
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imageclassifier_http_requests_total",
			Help: "HTTP requests partitioned by method, route and status code.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imageclassifier_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		uploadSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "imageclassifier_http_upload_size_bytes",
			Help:    "Size of uploaded images.",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register HTTP metrics: %w", err)
	}
	return m, nil
}

// RecordRequest records a finished request
func (m *HTTPMetrics) RecordRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordUpload records the size of an uploaded image
func (m *HTTPMetrics) RecordUpload(bytes int64) {
	if m == nil {
		return
	}
	m.uploadSize.Observe(float64(bytes))
}

// Describe implements prometheus.Collector
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.requestsTotal.Describe(ch)
	m.requestDuration.Describe(ch)
	ch <- m.uploadSize.Desc()
}

// Collect implements prometheus.Collector
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	m.requestsTotal.Collect(ch)
	m.requestDuration.Collect(ch)
	ch <- m.uploadSize
}
