package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"warden-sh/warden/pkg/config"
)

// TestNew_JSONFormat tests JSON output and level filtering.
func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Debug("hidden")
	logger.Info("visible", "tier", "blocked")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 log line, got %d", len(lines))
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "visible" {
		t.Errorf("msg = %v, want visible", entry["msg"])
	}
	if entry["tier"] != "blocked" {
		t.Errorf("tier = %v, want blocked", entry["tier"])
	}
}

// TestNew_TextFormat tests the text handler default.
func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("debug output missing: %q", buf.String())
	}
}

// TestNew_InvalidConfig tests rejection of unknown levels and formats.
func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "loud", Format: "text"}, nil); err == nil {
		t.Error("New() with bad level succeeded, want error")
	}
	if _, err := New(config.LoggingConfig{Level: "info", Format: "xml"}, nil); err == nil {
		t.Error("New() with bad format succeeded, want error")
	}
}
