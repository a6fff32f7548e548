// Package config loads client configuration from YAML and the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the datatram client.
// Configuration can come from a YAML file (config.yaml) or environment
// variables; environment variables always override YAML values. The session
// token is a secret and must only come from the environment.
type Config struct {
	// BackendURL is the Datatram API base URL. Uploaded assets are served
	// from <BackendURL>/uploads/<filename>.
	BackendURL string `yaml:"backend_url" env:"DATATRAM_BACKEND_URL" env-default:"http://localhost:8000"`

	Env     string `yaml:"env" env:"DATATRAM_ENV" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// RequestTimeout bounds every HTTP round trip. No retries happen below
	// this; retry policy belongs to callers.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"DATATRAM_REQUEST_TIMEOUT" env-default:"30s"`

	// HistoryStaleTime is how long a fetched history list is considered
	// fresh. HistoryRefetchInterval is the background polling period of the
	// history watcher, which refetches regardless of staleness.
	HistoryStaleTime       time.Duration `yaml:"history_stale_time" env:"DATATRAM_HISTORY_STALE_TIME" env-default:"30s"`
	HistoryRefetchInterval time.Duration `yaml:"history_refetch_interval" env:"DATATRAM_HISTORY_REFETCH_INTERVAL" env-default:"60s"`

	// StateDir holds locally persisted user state (onboarding flag, theme).
	// Defaults to ~/.datatram when empty.
	StateDir string `yaml:"state_dir" env:"DATATRAM_STATE_DIR" env-default:""`

	// Token is the session bearer token issued by the identity provider.
	// When empty, requests go out unauthenticated and the backend rejects
	// them.
	Token string `yaml:"-" env:"DATATRAM_TOKEN"` // Secret - not in YAML

	// Theme is the preferred UI theme (light, dark or system). The persisted
	// value in StateDir wins over this default.
	Theme string `yaml:"theme" env:"DATATRAM_THEME" env-default:"system"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. A .env file in the working directory is loaded first when
// present. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	// Missing .env is fine; it only exists in local setups.
	_ = godotenv.Load()

	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		cfg.StateDir = filepath.Join(home, ".datatram")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks fields that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend_url %q", c.BackendURL)
	}

	switch c.Theme {
	case "light", "dark", "system":
	default:
		return fmt.Errorf("invalid theme %q: must be light, dark or system", c.Theme)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.HistoryStaleTime < 0 || c.HistoryRefetchInterval <= 0 {
		return fmt.Errorf("history polling intervals must be positive")
	}

	return nil
}
