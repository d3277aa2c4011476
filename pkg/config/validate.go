package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"json", "text"}
)

// Validate checks the configuration for inconsistencies. Policy pattern
// lists are never invalid (empty lists degrade to no-op rules), so
// validation concerns the audit and telemetry sections.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration must not be nil")
	}

	if cfg.Audit.LogPath == "" {
		return fmt.Errorf("audit.log_path must not be empty")
	}

	if cfg.Audit.Index.Enabled && cfg.Audit.Index.Path == "" {
		return fmt.Errorf("audit.index.path must not be empty when the index is enabled")
	}
	if cfg.Audit.Index.ResyncSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Audit.Index.ResyncSchedule); err != nil {
			return fmt.Errorf("audit.index.resync_schedule is not a valid cron expression: %w", err)
		}
	}

	if !contains(validLogLevels, cfg.Telemetry.Logging.Level) {
		return fmt.Errorf("telemetry.logging.level must be one of %s, got %q",
			strings.Join(validLogLevels, ", "), cfg.Telemetry.Logging.Level)
	}
	if !contains(validLogFormats, cfg.Telemetry.Logging.Format) {
		return fmt.Errorf("telemetry.logging.format must be one of %s, got %q",
			strings.Join(validLogFormats, ", "), cfg.Telemetry.Logging.Format)
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
