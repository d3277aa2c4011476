// Package logging builds the process-wide structured logger from
// configuration. All components log through log/slog.
package logging
