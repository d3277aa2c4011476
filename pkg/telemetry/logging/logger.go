package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"warden-sh/warden/pkg/config"
)

// New creates a structured logger from the logging configuration. The
// writer defaults to stderr so log output never mixes with command results
// on stdout.
func New(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	return slog.New(handler), nil
}

// Setup installs a logger built from the configuration as the process-wide
// default, so components acquiring loggers via slog.Default inherit it.
func Setup(cfg config.LoggingConfig) error {
	logger, err := New(cfg, nil)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q", level)
	}
}
