package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AuditMetrics tracks metrics related to audit storage.
//
// Metrics:
//   - warden_audit_appends_total: append attempts by outcome
//   - warden_audit_append_duration_seconds: append duration including fsync
//   - warden_audit_skipped_lines_total: malformed lines skipped during scans
type AuditMetrics struct {
	// Append attempts by outcome ("ok", "error")
	appendsTotal *prometheus.CounterVec

	// Append duration histogram
	appendDuration prometheus.Histogram

	// Malformed lines skipped during scans
	skippedLines prometheus.Counter
}

// NewAuditMetrics creates and registers audit metrics with the provided registry.
func NewAuditMetrics(namespace string, registry *prometheus.Registry) *AuditMetrics {
	am := &AuditMetrics{
		appendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_appends_total",
				Help:      "Total number of audit record append attempts",
			},
			[]string{"outcome"},
		),

		appendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "audit_append_duration_seconds",
				Help:      "Duration of audit record appends in seconds",
				// Appends include an fsync, so the range is wider than
				// policy evaluation
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100µs to ~400ms
			},
		),

		skippedLines: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_skipped_lines_total",
				Help:      "Total number of malformed audit lines skipped during scans",
			},
		),
	}

	registry.MustRegister(
		am.appendsTotal,
		am.appendDuration,
		am.skippedLines,
	)

	return am
}

// RecordAppend records one append attempt and its duration.
func (am *AuditMetrics) RecordAppend(err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	am.appendsTotal.WithLabelValues(outcome).Inc()
	am.appendDuration.Observe(duration.Seconds())
}

// RecordSkippedLines adds to the skipped-line counter after a scan.
func (am *AuditMetrics) RecordSkippedLines(n int64) {
	if n > 0 {
		am.skippedLines.Add(float64(n))
	}
}
