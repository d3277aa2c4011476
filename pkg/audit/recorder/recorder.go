package recorder

import (
	"context"
	"log/slog"
	"os"
	"os/user"
	"time"

	"github.com/google/uuid"

	"warden-sh/warden/pkg/audit"
	"warden-sh/warden/pkg/policy"
	"warden-sh/warden/pkg/telemetry/metrics"
)

// Config contains configuration for the audit recorder.
type Config struct {
	// Organization and Department are stamped onto every record. Both come
	// from enterprise configuration and may be empty.
	Organization string
	Department   string

	// Backend identifies the LLM backend that generated the commands.
	Backend string

	// User overrides the recorded user. When empty the current system
	// user is looked up per record.
	User string

	// Metrics receives append outcomes when set.
	Metrics *metrics.AuditMetrics
}

// Outcome describes one classified command and what happened to it.
type Outcome struct {
	// Input is the natural-language request.
	Input string

	// Command is the generated shell command.
	Command string

	// Verdict is the policy engine's classification.
	Verdict policy.Verdict

	// Executed reports whether the command was run.
	Executed bool

	// ExitCode is the exit code when the command ran to completion.
	ExitCode *int

	// Notes carries extra context. Defaults to the verdict reason.
	Notes string
}

// Recorder appends audit records for a single assistant session.
type Recorder struct {
	storage   audit.Storage
	config    *Config
	sessionID string
	logger    *slog.Logger
}

// New creates a recorder bound to a storage backend. Each recorder gets a
// fresh session ID.
func New(storage audit.Storage, config *Config) *Recorder {
	if config == nil {
		config = &Config{}
	}

	return &Recorder{
		storage:   storage,
		config:    config,
		sessionID: uuid.New().String(),
		logger:    slog.Default().With("component", "audit.recorder"),
	}
}

// SessionID returns the session identifier stamped onto this recorder's records.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Record builds an audit record from the outcome and appends it. The append
// is synchronous and all-or-nothing; on failure the record is returned to
// the caller alongside the error so it can be retried or surfaced.
func (r *Recorder) Record(ctx context.Context, outcome Outcome) (*audit.Record, error) {
	record := r.build(outcome)

	start := time.Now()
	err := r.storage.Append(ctx, record)
	if r.config.Metrics != nil {
		r.config.Metrics.RecordAppend(err, time.Since(start))
	}

	if err != nil {
		r.logger.Error("failed to append audit record",
			"session_id", r.sessionID,
			"user", record.User,
			"tier", record.SafetyLevel.String(),
			"error", err,
		)
		return record, audit.NewRecorderError(r.sessionID, err)
	}

	r.logger.Debug("audit record appended",
		"session_id", r.sessionID,
		"tier", record.SafetyLevel.String(),
		"executed", record.Executed,
	)

	return record, nil
}

// build assembles the immutable record for an outcome.
func (r *Recorder) build(outcome Outcome) *audit.Record {
	notes := outcome.Notes
	if notes == "" {
		notes = outcome.Verdict.Reason
	}

	username := r.config.User
	if username == "" {
		username = currentUser()
	}

	return &audit.Record{
		Timestamp:        time.Now().UTC(),
		User:             username,
		Organization:     r.config.Organization,
		Department:       r.config.Department,
		Input:            outcome.Input,
		GeneratedCommand: outcome.Command,
		Executed:         outcome.Executed,
		ExitCode:         outcome.ExitCode,
		SafetyLevel:      outcome.Verdict.Tier,
		Notes:            notes,
		Backend:          r.config.Backend,
		SessionID:        r.sessionID,
	}
}

// currentUser resolves the system user, falling back to environment
// variables and then "unknown".
func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, key := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "unknown"
}
