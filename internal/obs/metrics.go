// Package obs provides observability functionality including metrics, tracing and HTTP endpoints
package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery results used as label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	EventsAcceptedTotal      *prometheus.CounterVec
	ValidationFailuresTotal  *prometheus.CounterVec
	SerializationErrorsTotal prometheus.Counter
	EnqueueErrorsTotal       prometheus.Counter
	DeliveriesTotal          *prometheus.CounterVec
	DeliveryLatency          prometheus.Histogram
	InFlight                 prometheus.Gauge
	QueueDepth               prometheus.Gauge
}

// NewMetrics creates and initializes a new Metrics instance
// All metrics are registered with the provided registerer
func NewMetrics(serviceName string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{
		"service": serviceName,
	}

	return &Metrics{
		EventsAcceptedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "events_accepted_total",
			Help:        "Total number of events accepted for asynchronous delivery",
			ConstLabels: labels,
		}, []string{"operation"}),
		ValidationFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "validation_failures_total",
			Help:        "Total number of requests rejected by validation",
			ConstLabels: labels,
		}, []string{"operation"}),
		SerializationErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "serialization_errors_total",
			Help:        "Total number of events that could not be encoded for the wire",
			ConstLabels: labels,
		}),
		EnqueueErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "enqueue_errors_total",
			Help:        "Total number of events the broker client refused to accept",
			ConstLabels: labels,
		}),
		DeliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "deliveries_total",
			Help:        "Total number of completed publish attempts by result",
			ConstLabels: labels,
		}, []string{"result"}),
		DeliveryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "delivery_latency_seconds",
			Help:        "Time from hand-off to broker acknowledgment or failure",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "deliveries_in_flight",
			Help:        "Number of publish attempts handed off and not yet completed",
			ConstLabels: labels,
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "queue_depth",
			Help:        "Current depth of the in-memory broker queue",
			ConstLabels: labels,
		}),
	}
}

// IncrementEventsAccepted increments the accepted events counter for an operation by 1
func (m *Metrics) IncrementEventsAccepted(operation string) {
	if m == nil {
		return
	}
	m.EventsAcceptedTotal.WithLabelValues(operation).Inc()
}

// IncrementValidationFailures increments the validation failures counter for an operation by 1
func (m *Metrics) IncrementValidationFailures(operation string) {
	if m == nil {
		return
	}
	m.ValidationFailuresTotal.WithLabelValues(operation).Inc()
}

// IncrementSerializationErrors increments the serialization errors counter by 1
func (m *Metrics) IncrementSerializationErrors() {
	if m == nil {
		return
	}
	m.SerializationErrorsTotal.Inc()
}

// IncrementEnqueueErrors increments the enqueue errors counter by 1
func (m *Metrics) IncrementEnqueueErrors() {
	if m == nil {
		return
	}
	m.EnqueueErrorsTotal.Inc()
}

// DeliveryStarted marks one publish attempt as in flight
func (m *Metrics) DeliveryStarted() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

// DeliveryAborted undoes DeliveryStarted for a record the broker client refused
func (m *Metrics) DeliveryAborted() {
	if m == nil {
		return
	}
	m.InFlight.Dec()
}

// ObserveDelivery records the outcome of a publish attempt started with DeliveryStarted
func (m *Metrics) ObserveDelivery(success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}
	m.InFlight.Dec()
	m.DeliveriesTotal.WithLabelValues(result).Inc()
	m.DeliveryLatency.Observe(elapsed.Seconds())
}

// IncrementQueueDepth increments the queue depth gauge metric by 1
func (m *Metrics) IncrementQueueDepth() {
	if m == nil {
		return
	}
	m.QueueDepth.Inc()
}

// DecrementQueueDepth decrements the queue depth gauge metric by 1
func (m *Metrics) DecrementQueueDepth() {
	if m == nil {
		return
	}
	m.QueueDepth.Dec()
}

// NullifyQueueDepth sets the queue depth gauge metric to 0
func (m *Metrics) NullifyQueueDepth() {
	if m == nil {
		return
	}
	m.QueueDepth.Set(0)
}
