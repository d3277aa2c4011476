package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PolicyMetrics tracks metrics related to command policy evaluation.
//
// Metrics:
//   - warden_policy_evaluations_total: evaluations by resulting tier
//   - warden_policy_evaluation_duration_seconds: evaluation duration
//   - warden_policy_blocks_total: blocked verdicts by rule source
type PolicyMetrics struct {
	// Total evaluations by resulting tier
	evaluationsTotal *prometheus.CounterVec

	// Evaluation duration histogram
	evaluationDuration prometheus.Histogram

	// Blocked verdicts by rule source (allow-list, deny pattern)
	blocksTotal *prometheus.CounterVec
}

// NewPolicyMetrics creates and registers policy metrics with the provided registry.
func NewPolicyMetrics(namespace string, registry *prometheus.Registry) *PolicyMetrics {
	pm := &PolicyMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_evaluations_total",
				Help:      "Total number of command policy evaluations",
			},
			[]string{"tier"},
		),

		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "policy_evaluation_duration_seconds",
				Help:      "Duration of command policy evaluation in seconds",
				// Evaluation is pure string matching and should be fast
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 12), // 1µs to 2ms
			},
		),

		blocksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_blocks_total",
				Help:      "Total number of blocked verdicts by rule source",
			},
			[]string{"rule"},
		),
	}

	registry.MustRegister(
		pm.evaluationsTotal,
		pm.evaluationDuration,
		pm.blocksTotal,
	)

	return pm
}

// RecordEvaluation records one evaluation outcome.
//
// Parameters:
//   - tier: resulting safety tier ("safe", "warning", "dangerous", "blocked")
//   - duration: time taken to evaluate
func (pm *PolicyMetrics) RecordEvaluation(tier string, duration time.Duration) {
	pm.evaluationsTotal.WithLabelValues(tier).Inc()
	pm.evaluationDuration.Observe(duration.Seconds())
}

// RecordBlock records a blocked verdict attributed to the rule that decided it.
func (pm *PolicyMetrics) RecordBlock(rule string) {
	pm.blocksTotal.WithLabelValues(rule).Inc()
}
