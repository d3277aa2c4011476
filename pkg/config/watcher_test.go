package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, organization string) {
	t.Helper()

	content := "organization: " + organization + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
}

// TestWatcher_ReloadOnChange tests that a file change delivers a reloaded
// configuration after the debounce interval.
func TestWatcher_ReloadOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "acme")

	reloaded := make(chan *Config, 4)
	watcher, err := NewWatcher(WatcherConfig{
		Path:             path,
		DebounceInterval: 50 * time.Millisecond,
		OnChange: func(cfg *Config) {
			reloaded <- cfg
		},
	})
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer watcher.Stop()

	writeConfig(t, path, "globex")

	select {
	case cfg := <-reloaded:
		if cfg.Organization != "globex" {
			t.Errorf("Organization = %q, want globex", cfg.Organization)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

// TestWatcher_AtomicReplace tests that rename-replace saves (the atomic
// write pattern editors and config managers use) trigger a reload.
func TestWatcher_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "acme")

	reloaded := make(chan *Config, 4)
	watcher, err := NewWatcher(WatcherConfig{
		Path:             path,
		DebounceInterval: 50 * time.Millisecond,
		OnChange: func(cfg *Config) {
			reloaded <- cfg
		},
	})
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer watcher.Stop()

	tmp := filepath.Join(dir, "config.yaml.tmp")
	writeConfig(t, tmp, "globex")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("Rename() failed: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Organization != "globex" {
			t.Errorf("Organization = %q, want globex", cfg.Organization)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

// TestWatcher_InvalidChangeKeepsRunning tests that a broken config file is
// logged and skipped; a subsequent good write still reloads.
func TestWatcher_InvalidChangeKeepsRunning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "acme")

	reloaded := make(chan *Config, 4)
	watcher, err := NewWatcher(WatcherConfig{
		Path:             path,
		DebounceInterval: 50 * time.Millisecond,
		OnChange: func(cfg *Config) {
			reloaded <- cfg
		},
	})
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer watcher.Stop()

	if err := os.WriteFile(path, []byte("policy: [broken"), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	// The broken write must not deliver a config
	select {
	case cfg := <-reloaded:
		t.Fatalf("received config from broken file: %+v", cfg)
	case <-time.After(500 * time.Millisecond):
	}

	writeConfig(t, path, "globex")

	select {
	case cfg := <-reloaded:
		if cfg.Organization != "globex" {
			t.Errorf("Organization = %q, want globex", cfg.Organization)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload after recovery")
	}
}

// TestWatcher_Validation tests constructor argument validation.
func TestWatcher_Validation(t *testing.T) {
	if _, err := NewWatcher(WatcherConfig{OnChange: func(*Config) {}}); err == nil {
		t.Error("NewWatcher() without path succeeded, want error")
	}
	if _, err := NewWatcher(WatcherConfig{Path: "/tmp/x.yaml"}); err == nil {
		t.Error("NewWatcher() without callback succeeded, want error")
	}
}
