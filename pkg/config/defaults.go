package config

import "path/filepath"

// Default returns the configuration used when no file is present. The
// posture is conservative: compliance mode on with an empty allow list
// (a no-op rule until patterns are added) and a starter deny list of
// catastrophic commands.
func Default() *Config {
	dir := DefaultDir()

	return &Config{
		LLMBackend: "ollama",
		Policy: PolicyConfig{
			ComplianceMode:  true,
			AllowedCommands: []string{},
			BlockedCommands: []string{
				"rm -rf /",
				"format",
				`del /s /q c:\`,
			},
		},
		Audit: AuditConfig{
			LogPath: filepath.Join(dir, "audit.log"),
			Sync:    true,
			Index: IndexConfig{
				Enabled: false,
				Path:    filepath.Join(dir, "audit.db"),
			},
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
			Metrics: MetricsConfig{
				Enabled:   false,
				Namespace: "warden",
			},
		},
	}
}
