package config

import (
	"os"
	"path/filepath"

	"warden-sh/warden/pkg/policy"
)

// Config is the root configuration consumed by the policy engine, the audit
// store, and the CLI.
type Config struct {
	// Organization and Department identify the deployment in audit records.
	Organization string `yaml:"organization"`
	Department   string `yaml:"department"`

	// LLMBackend names the backend that generates commands; recorded on
	// every audit entry.
	LLMBackend string `yaml:"llm_backend"`

	Policy    PolicyConfig    `yaml:"policy"`
	Audit     AuditConfig     `yaml:"audit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// PolicyConfig carries the caller-owned policy fields.
type PolicyConfig struct {
	// ComplianceMode requires explicit allow-listing whenever the allow
	// list is non-empty.
	ComplianceMode bool `yaml:"compliance_mode"`

	// AllowedCommands are allow patterns (case-insensitive substrings).
	AllowedCommands []string `yaml:"allowed_commands"`

	// BlockedCommands are deny patterns; a match always blocks.
	BlockedCommands []string `yaml:"blocked_commands"`
}

// EngineConfig maps the configuration fields into the policy engine's
// borrowed-per-evaluation form.
func (p PolicyConfig) EngineConfig() policy.Config {
	return policy.Config{
		AllowList:      p.AllowedCommands,
		DenyList:       p.BlockedCommands,
		ComplianceMode: p.ComplianceMode,
	}
}

// AuditConfig configures the audit store and its optional index.
type AuditConfig struct {
	// LogPath is the JSONL audit log location.
	LogPath string `yaml:"log_path"`

	// Sync flushes every append to stable storage. Default: true.
	Sync bool `yaml:"sync"`

	Index IndexConfig `yaml:"index"`
}

// IndexConfig configures the SQLite query index over the audit log.
type IndexConfig struct {
	// Enabled turns the index on.
	Enabled bool `yaml:"enabled"`

	// Path is the index database location.
	Path string `yaml:"path"`

	// ResyncSchedule is a cron expression for periodic resync from the
	// log. Empty disables scheduled resync.
	ResyncSchedule string `yaml:"resync_schedule"`
}

// TelemetryConfig configures logging and metrics.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	Format string `yaml:"format"`
}

// MetricsConfig configures Prometheus metric collection.
type MetricsConfig struct {
	// Enabled turns metric collection on.
	Enabled bool `yaml:"enabled"`

	// Namespace prefixes every metric name. Default: "warden".
	Namespace string `yaml:"namespace"`
}

// DefaultDir returns the per-user application directory (~/.warden).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fall back to the working directory when no home is available
		// (minimal containers, some service accounts).
		return ".warden"
	}
	return filepath.Join(home, ".warden")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}
