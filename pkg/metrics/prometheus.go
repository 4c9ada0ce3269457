package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	eventsScored     *prometheus.CounterVec
	outcomesResolved *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	pendingDepth     prometheus.Gauge
	calibratedScore  *prometheus.HistogramVec
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		eventsScored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hermes_events_scored_total",
				Help: "Total number of events scored",
			},
			[]string{"scope", "event_type"},
		),
		outcomesResolved: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hermes_outcomes_resolved_total",
				Help: "Total number of pending outcomes resolved",
			},
			[]string{"scope", "group", "hit"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hermes_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		pendingDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hermes_calibration_pending_depth",
				Help: "Current depth of the pending calibration queue",
			},
		),
		calibratedScore: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hermes_calibrated_score",
				Help:    "Distribution of calibrated event scores",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
			[]string{"scope", "event_type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hermes_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordEventScored records one scored event.
func (r *Recorder) RecordEventScored(scope, eventType string) {
	r.eventsScored.WithLabelValues(scope, eventType).Inc()
}

// RecordOutcomeResolved records one resolved pending outcome.
func (r *Recorder) RecordOutcomeResolved(scope, group string, hit bool) {
	h := "miss"
	if hit {
		h = "hit"
	}
	r.outcomesResolved.WithLabelValues(scope, group, h).Inc()
}

// RecordPendingDepth updates the pending-queue depth gauge.
func (r *Recorder) RecordPendingDepth(n int) {
	r.pendingDepth.Set(float64(n))
}

// RecordCalibratedScore observes one calibrated score.
func (r *Recorder) RecordCalibratedScore(scope, eventType string, score float64) {
	r.calibratedScore.WithLabelValues(scope, eventType).Observe(score)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
