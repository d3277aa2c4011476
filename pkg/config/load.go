package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file at the specified path. Fields
// absent from the file keep their defaults; a missing file yields the
// defaults unchanged. The result is validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		slog.Debug("config file not found, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Variables follow the naming convention
// WARDEN_SECTION_FIELD (e.g., WARDEN_AUDIT_LOG_PATH) and always take
// precedence over file values.
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies WARDEN_* environment variables to the configuration.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("WARDEN_ORGANIZATION"); val != "" {
		cfg.Organization = val
	}
	if val := os.Getenv("WARDEN_DEPARTMENT"); val != "" {
		cfg.Department = val
	}
	if val := os.Getenv("WARDEN_LLM_BACKEND"); val != "" {
		cfg.LLMBackend = val
	}

	// Policy overrides
	if val := os.Getenv("WARDEN_POLICY_COMPLIANCE_MODE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Policy.ComplianceMode = b
		}
	}

	// Audit overrides
	if val := os.Getenv("WARDEN_AUDIT_LOG_PATH"); val != "" {
		cfg.Audit.LogPath = val
	}
	if val := os.Getenv("WARDEN_AUDIT_SYNC"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Audit.Sync = b
		}
	}
	if val := os.Getenv("WARDEN_AUDIT_INDEX_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Audit.Index.Enabled = b
		}
	}
	if val := os.Getenv("WARDEN_AUDIT_INDEX_PATH"); val != "" {
		cfg.Audit.Index.Path = val
	}
	if val := os.Getenv("WARDEN_AUDIT_INDEX_RESYNC_SCHEDULE"); val != "" {
		cfg.Audit.Index.ResyncSchedule = val
	}

	// Telemetry overrides
	if val := os.Getenv("WARDEN_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("WARDEN_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("WARDEN_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("WARDEN_TELEMETRY_METRICS_NAMESPACE"); val != "" {
		cfg.Telemetry.Metrics.Namespace = val
	}
}
