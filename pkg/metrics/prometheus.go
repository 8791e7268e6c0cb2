package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchDuration  *prometheus.HistogramVec
	samplesFetched *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	alignedHours   prometheus.Gauge
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archpull_fetch_duration_seconds",
				Help:    "Duration of archiver fetches per PV",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"pv"},
		),
		samplesFetched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archpull_samples_fetched_total",
				Help: "Total number of samples fetched from the archiver",
			},
			[]string{"pv"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		alignedHours: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "archpull_aligned_duration_hours",
				Help: "Total duration of the last aligned dataset in hours",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetch records one completed archiver fetch.
func (r *Recorder) RecordFetch(pv string, seconds float64, samples int) {
	r.fetchDuration.WithLabelValues(pv).Observe(seconds)
	r.samplesFetched.WithLabelValues(pv).Add(float64(samples))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordAlignedHours records the span of the last aligned dataset.
func (r *Recorder) RecordAlignedHours(hours float64) {
	r.alignedHours.Set(hours)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
