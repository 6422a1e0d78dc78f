// Package metrics provides Prometheus-based recording for the tutoring core
// and a query service for aggregating per-session usage.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records turn, collaborator, and progression metrics.
type Recorder struct {
	turnsTotal         *prometheus.CounterVec
	collabRequests     *prometheus.CounterVec
	collabDuration     *prometheus.HistogramVec
	tokensTotal        *prometheus.CounterVec
	phaseTransitions   *prometheus.CounterVec
	offloadingDetected *prometheus.CounterVec
}

// NewRecorder creates a recorder registered on reg; a nil reg uses the
// default registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutor_turns_total",
				Help: "Total number of processed turns by session, route, and winning rule",
			},
			[]string{"session_id", "route", "rule"},
		),
		collabRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutor_collaborator_requests_total",
				Help: "Total number of collaborator invocations by name and status",
			},
			[]string{"name", "status"},
		),
		collabDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tutor_collaborator_duration_seconds",
				Help:    "Duration of collaborator invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"name"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutor_tokens_total",
				Help: "Total number of tokens used by session and type",
			},
			[]string{"session_id", "type"},
		),
		phaseTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutor_phase_transitions_total",
				Help: "Total number of learning-phase transitions",
			},
			[]string{"from_phase", "to_phase"},
		),
		offloadingDetected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutor_offloading_detected_total",
				Help: "Total number of detected cognitive-offloading attempts by type",
			},
			[]string{"type"},
		),
	}
}

// RecordTurn counts one processed turn.
func (r *Recorder) RecordTurn(sessionID, route, rule string) {
	r.turnsTotal.WithLabelValues(sessionID, route, rule).Inc()
}

// RecordCollaboratorCall implements the invoker's observer hook.
func (r *Recorder) RecordCollaboratorCall(name, status string, duration time.Duration) {
	r.collabRequests.WithLabelValues(name, status).Inc()
	r.collabDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// RecordTokens counts prompt and completion tokens for a session.
func (r *Recorder) RecordTokens(sessionID string, promptTokens, completionTokens int) {
	r.tokensTotal.WithLabelValues(sessionID, "prompt").Add(float64(promptTokens))
	r.tokensTotal.WithLabelValues(sessionID, "completion").Add(float64(completionTokens))
}

// RecordPhaseTransition counts one learning-phase transition.
func (r *Recorder) RecordPhaseTransition(fromPhase, toPhase string) {
	r.phaseTransitions.WithLabelValues(fromPhase, toPhase).Inc()
}

// RecordOffloading counts one detected offloading attempt.
func (r *Recorder) RecordOffloading(offloadingType string) {
	r.offloadingDetected.WithLabelValues(offloadingType).Inc()
}
