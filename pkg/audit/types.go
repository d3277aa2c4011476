package audit

import (
	"context"
	"time"

	"warden-sh/warden/pkg/policy"
)

// Record is a single audit trail entry: one policy classification and its
// execution outcome. Records are immutable once appended.
//
// The JSON field names define the on-disk line format: one UTF-8 JSON object
// per line, each line independently parseable.
type Record struct {
	// Timestamp is the UTC instant the record was created.
	Timestamp time.Time `json:"timestamp"`

	// User is the system user the command was generated for.
	User string `json:"user"`

	// Organization and Department come from enterprise configuration.
	Organization string `json:"organization,omitempty"`
	Department   string `json:"department,omitempty"`

	// Input is the natural-language request the command was generated from.
	Input string `json:"input"`

	// GeneratedCommand is the shell command that was classified.
	GeneratedCommand string `json:"generated_command"`

	// Executed reports whether the command was actually run.
	Executed bool `json:"executed"`

	// ExitCode is the command's exit code, nil when not executed or when
	// the outcome is unknown.
	ExitCode *int `json:"exit_code,omitempty"`

	// SafetyLevel is the tier assigned by the policy engine.
	SafetyLevel policy.Tier `json:"safety_level"`

	// Notes carries additional context, such as the block reason.
	Notes string `json:"notes,omitempty"`

	// Backend identifies the LLM backend that generated the command.
	Backend string `json:"llm_backend"`

	// SessionID correlates records produced within one assistant session.
	SessionID string `json:"session_id,omitempty"`
}

// Filter selects records during a query. Zero-valued fields do not filter.
type Filter struct {
	// User matches exactly.
	User string

	// Tier matches exactly.
	Tier *policy.Tier

	// Since is the inclusive lower bound on the record timestamp.
	Since *time.Time

	// Until is the exclusive upper bound on the record timestamp.
	Until *time.Time
}

// Matches reports whether the record satisfies every set filter field.
func (f *Filter) Matches(r *Record) bool {
	if f == nil {
		return true
	}
	if f.User != "" && r.User != f.User {
		return false
	}
	if f.Tier != nil && r.SafetyLevel != *f.Tier {
		return false
	}
	if f.Since != nil && r.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && !r.Timestamp.Before(*f.Until) {
		return false
	}
	return true
}

// Statistics is a full-scan aggregation over the store.
type Statistics struct {
	// Total is the number of successfully parsed records.
	Total int64 `json:"total"`

	// Executed is the number of records with Executed set.
	Executed int64 `json:"executed"`

	// FailedExecutions counts executed records whose exit code is absent
	// or nonzero.
	FailedExecutions int64 `json:"failed_executions"`

	// PerTier counts records by safety tier.
	PerTier map[policy.Tier]int64 `json:"per_tier"`

	// SkippedLines counts malformed or truncated lines encountered during
	// the scan. They never abort a scan.
	SkippedLines int64 `json:"skipped_lines"`
}

// Storage is the interface audit backends implement. Implementations must be
// safe for concurrent use within a single process; coordinating writers
// across processes is out of scope.
type Storage interface {
	// Append persists one record atomically: either the whole line is
	// durable when Append returns nil, or nothing of it is visible to
	// readers. Failures are surfaced, never swallowed.
	Append(ctx context.Context, record *Record) error

	// Query returns records matching the filter in insertion order.
	Query(ctx context.Context, filter *Filter) ([]*Record, error)

	// QueryStream streams matching records in insertion order without
	// materializing the whole store. Each call restarts from the
	// beginning of the log. The channels are closed when the scan
	// completes or errors; callers should drain both.
	QueryStream(ctx context.Context, filter *Filter) (<-chan *Record, <-chan error, error)

	// Count returns the number of records matching the filter.
	Count(ctx context.Context, filter *Filter) (int64, error)

	// Statistics aggregates over the full store.
	Statistics(ctx context.Context) (*Statistics, error)

	// Close releases any resources held by the backend.
	Close() error
}
