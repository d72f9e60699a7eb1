package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.DefaultProfile != "main" {
		t.Errorf("default profile = %q, want main", cfg.DefaultProfile)
	}
	if cfg.Debounce() != time.Second {
		t.Errorf("debounce = %v, want 1s", cfg.Debounce())
	}
	if cfg.Sync.PollMaxAttempts != 4 {
		t.Errorf("poll max attempts = %d, want 4", cfg.Sync.PollMaxAttempts)
	}
	if cfg.PollInterval() != 2*time.Second {
		t.Errorf("poll interval = %v, want 2s", cfg.PollInterval())
	}
	if !cfg.Sync.AutoReconnect {
		t.Error("auto reconnect should default on")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.Server.APIURL = "https://chat.example.com"
	cfg.Server.Token = "secret"
	cfg.Sync.DebounceMs = 250

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.DefaultProfile != "work" || got.Server.APIURL != "https://chat.example.com" {
		t.Errorf("loaded = %+v", got)
	}
	if got.Server.Token != "secret" {
		t.Errorf("token = %q, want secret", got.Server.Token)
	}
	if got.Debounce() != 250*time.Millisecond {
		t.Errorf("debounce = %v, want 250ms", got.Debounce())
	}
}

func TestSaveUsesRestrictivePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := Save(path, Default()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	cfg := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	if cfg.DefaultProfile != "main" {
		t.Errorf("fallback profile = %q, want main", cfg.DefaultProfile)
	}
}
