package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	published *prometheus.CounterVec
	errors    *prometheus.CounterVec
	snapshot  *prometheus.GaugeVec
	latency   *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		published: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outsift_events_published_total",
				Help: "Total number of events published to a backend",
			},
			[]string{"backend", "detector"},
		),
		errors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outsift_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		snapshot: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "outsift_evaluation_metric",
				Help: "Latest evaluation snapshot value per metric key",
			},
			[]string{"detector", "key"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "outsift_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPublished records an event published to a backend.
func (r *Recorder) RecordPublished(backend, detector string) {
	r.published.WithLabelValues(backend, detector).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordGauge records one evaluation snapshot value. NaN values are skipped:
// an undefined rate keeps its previous exposition rather than poisoning the
// scrape.
func (r *Recorder) RecordGauge(detector, key string, value float64) {
	if math.IsNaN(value) {
		return
	}
	r.snapshot.WithLabelValues(detector, key).Set(value)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
