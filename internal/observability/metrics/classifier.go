package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ClassifierMetrics contains Prometheus metrics for model loading and recognition.
type ClassifierMetrics struct {
	RecognitionCounter *prometheus.CounterVec
	OperationTotal     *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	OperationErrors    *prometheus.CounterVec
	ModelLoadedGauge   prometheus.Gauge
	QueueDepthGauge    prometheus.Gauge
	registry           *prometheus.Registry
}

// NewClassifierMetrics creates ClassifierMetrics and registers them with registry.
func NewClassifierMetrics(registry *prometheus.Registry) (*ClassifierMetrics, error) {
	m := &ClassifierMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register classifier metrics: %w", err)
	}
	return m, nil
}

func (m *ClassifierMetrics) initMetrics() {
	m.RecognitionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageclassifier_top_recognitions_total",
			Help: "Number of times each label ranked first.",
		},
		[]string{"label"},
	)
	m.OperationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageclassifier_operations_total",
			Help: "Classifier operations partitioned by outcome.",
		},
		[]string{"operation", "status"},
	)
	m.OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imageclassifier_operation_duration_seconds",
			Help:    "Time spent in each classifier stage.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"operation"},
	)
	m.OperationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageclassifier_operation_errors_total",
			Help: "Classifier errors partitioned by operation and category.",
		},
		[]string{"operation", "error_type"},
	)
	m.ModelLoadedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "imageclassifier_model_loaded",
		Help: "Whether the classification model is loaded (1) or not (0).",
	})
	m.QueueDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "imageclassifier_queue_depth",
		Help: "Recognition requests waiting for a worker.",
	})
}

// RecordOperation implements Recorder
func (m *ClassifierMetrics) RecordOperation(operation, status string) {
	if m == nil {
		return
	}
	m.OperationTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder
func (m *ClassifierMetrics) RecordDuration(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder
func (m *ClassifierMetrics) RecordError(operation, errorType string) {
	if m == nil {
		return
	}
	m.OperationErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordTopLabel counts the label ranked first for a photo
func (m *ClassifierMetrics) RecordTopLabel(label string) {
	if m == nil {
		return
	}
	m.RecognitionCounter.WithLabelValues(label).Inc()
}

// SetModelLoaded sets the model loaded gauge
func (m *ClassifierMetrics) SetModelLoaded(loaded bool) {
	if m == nil {
		return
	}
	if loaded {
		m.ModelLoadedGauge.Set(1)
	} else {
		m.ModelLoadedGauge.Set(0)
	}
}

// SetQueueDepth sets the number of queued recognition requests
func (m *ClassifierMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.QueueDepthGauge.Set(float64(depth))
}

// Describe implements prometheus.Collector
func (m *ClassifierMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RecognitionCounter.Describe(ch)
	m.OperationTotal.Describe(ch)
	m.OperationDuration.Describe(ch)
	m.OperationErrors.Describe(ch)
	ch <- m.ModelLoadedGauge.Desc()
	ch <- m.QueueDepthGauge.Desc()
}

// Collect implements prometheus.Collector
func (m *ClassifierMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RecognitionCounter.Collect(ch)
	m.OperationTotal.Collect(ch)
	m.OperationDuration.Collect(ch)
	m.OperationErrors.Collect(ch)
	ch <- m.ModelLoadedGauge
	ch <- m.QueueDepthGauge
}
