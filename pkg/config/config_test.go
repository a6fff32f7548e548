package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no config.yaml, no .env

	cfg, err := Load("test")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "test", cfg.Version)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 30*time.Second, cfg.HistoryStaleTime)
	assert.Equal(t, 60*time.Second, cfg.HistoryRefetchInterval)
	assert.Equal(t, "system", cfg.Theme)
	assert.NotEmpty(t, cfg.StateDir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATATRAM_BACKEND_URL", "https://api.datatram.io")
	t.Setenv("DATATRAM_TOKEN", "tok-123")
	t.Setenv("DATATRAM_THEME", "dark")
	t.Setenv("DATATRAM_STATE_DIR", "/tmp/datatram-test-state")

	cfg, err := Load("dev")
	require.NoError(t, err)

	assert.Equal(t, "https://api.datatram.io", cfg.BackendURL)
	assert.Equal(t, "tok-123", cfg.Token)
	assert.Equal(t, "dark", cfg.Theme)
	assert.Equal(t, "/tmp/datatram-test-state", cfg.StateDir)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			BackendURL:             "http://localhost:8000",
			Theme:                  "system",
			RequestTimeout:         time.Second,
			HistoryStaleTime:       time.Second,
			HistoryRefetchInterval: time.Second,
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("bad backend url", func(t *testing.T) {
		cfg := base()
		cfg.BackendURL = "not a url"
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad theme", func(t *testing.T) {
		cfg := base()
		cfg.Theme = "sepia"
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero timeout", func(t *testing.T) {
		cfg := base()
		cfg.RequestTimeout = 0
		assert.Error(t, cfg.Validate())
	})
}
