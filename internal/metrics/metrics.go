// Package metrics provides Prometheus metrics for the validator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cv_validator"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Validation metrics
	ValidationsTotal  *prometheus.CounterVec
	FieldMismatches   prometheus.Counter
	Failures          *prometheus.CounterVec
	ExtractionLatency prometheus.Histogram

	// Delivery metrics
	DeliveriesTotal *prometheus.CounterVec
	DeliveryErrors  *prometheus.CounterVec
	DeliveryLatency *prometheus.HistogramVec

	// Worker metrics
	TasksTotal *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ValidationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Total number of validations by status",
		}, []string{"status"}),
		FieldMismatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_mismatches_total",
			Help:      "Total number of claimed fields not found in documents",
		}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Total number of validations that could not check the document, by kind",
		}, []string{"kind"}),
		ExtractionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Time spent extracting document text",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		DeliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Total number of result deliveries by notifier",
		}, []string{"notifier"}),
		DeliveryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_errors_total",
			Help:      "Total number of failed result deliveries by notifier",
		}, []string{"notifier"}),
		DeliveryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Result delivery latency by notifier",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"notifier"}),
		TasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_tasks_total",
			Help:      "Total number of worker task invocations by agent and response code",
		}, []string{"agent", "code"}),
	}
}

// RecordValidation records a finished validation.
func (m *Metrics) RecordValidation(status string, mismatches int) {
	if m == nil {
		return
	}
	m.ValidationsTotal.WithLabelValues(status).Inc()
	m.FieldMismatches.Add(float64(mismatches))
}

// RecordFailure records a validation that could not check the document.
func (m *Metrics) RecordFailure(kind string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(kind).Inc()
}

// ObserveExtraction records the time spent reading a document.
func (m *Metrics) ObserveExtraction(seconds float64) {
	if m == nil {
		return
	}
	m.ExtractionLatency.Observe(seconds)
}

// RecordDelivery records a delivery attempt through the named notifier.
func (m *Metrics) RecordDelivery(notifier string, err error, seconds float64) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(notifier).Inc()
	m.DeliveryLatency.WithLabelValues(notifier).Observe(seconds)
	if err != nil {
		m.DeliveryErrors.WithLabelValues(notifier).Inc()
	}
}

// RecordTask records a worker task invocation.
func (m *Metrics) RecordTask(agent, code string) {
	if m == nil {
		return
	}
	m.TasksTotal.WithLabelValues(agent, code).Inc()
}
