// Package cli holds error types shared by the warden commands.
package cli

import "fmt"

// ConfigError reports a flag or configuration value a command cannot act
// on: an unknown tier name, an unparsable timestamp, a disabled feature.
type ConfigError struct {
	// Field names the offending flag or config key. May be empty when the
	// problem is not tied to one field.
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewConfigError creates a ConfigError for the given field.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// CommandError wraps a failure from one warden subcommand so the top-level
// error output names the command that failed.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError wraps err as a failure of the named command.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}
