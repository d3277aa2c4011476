// Package config loads warden configuration from YAML with defaults,
// environment overrides, and validation.
//
// The policy fields (allowed_commands, blocked_commands, compliance_mode)
// feed the policy engine; organization, department, and llm_backend identity
// are stamped onto audit records. Defaults live under ~/.warden/.
//
// Loading order: defaults, then the YAML file, then WARDEN_SECTION_FIELD
// environment variables. Values set later win. A missing config file is not
// an error: defaults apply, matching the conservative posture of the policy
// engine (compliance mode on, a non-empty deny list).
package config
