package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.tether/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`

	Server Server `toml:"server"`
	Sync   Sync   `toml:"sync"`
}

// Server holds the remote endpoints and credentials.
type Server struct {
	APIURL string `toml:"api_url"`
	WSURL  string `toml:"ws_url"`
	Token  string `toml:"token"`
}

// Sync holds the synchronization engine knobs. AutoReconnect decides
// whether a lost push transport is redialed immediately or left down.
type Sync struct {
	DebounceMs      int  `toml:"debounce_ms"`
	PollMaxAttempts int  `toml:"poll_max_attempts"`
	PollIntervalMs  int  `toml:"poll_interval_ms"`
	AutoReconnect   bool `toml:"auto_reconnect"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		Server: Server{
			APIURL: "http://localhost:8000",
			WSURL:  "ws://localhost:8000/ws",
		},
		Sync: Sync{
			DebounceMs:      1000,
			PollMaxAttempts: 4,
			PollIntervalMs:  2000,
			AutoReconnect:   true,
		},
	}
}

// Debounce returns the search debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Sync.DebounceMs) * time.Millisecond
}

// PollInterval returns the confirmation poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Sync.PollIntervalMs) * time.Millisecond
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault reads config from path, falling back to Default when the
// file is missing.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		return Default()
	}
	return cfg
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
