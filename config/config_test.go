package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.NoError(t, err)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1200*time.Millisecond, cfg.Search.PollInterval())
	assert.Equal(t, 5*time.Minute, cfg.Session.LoginTimeout())
	assert.Equal(t, "KTX", cfg.Keyring.CardService)
}

func TestLoadOverridesOnTopOfDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
search:
  poll_interval_ms: 2000
session:
  login_timeout_seconds: 60
`), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Search.PollInterval())
	assert.Equal(t, time.Minute, cfg.Session.LoginTimeout())
	// Untouched sections keep their defaults.
	assert.Equal(t, 5, cfg.Search.MaxConsecutiveErrors)
	assert.Equal(t, "ko-KR", cfg.Browser.Locale)
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: [not, a, map"), 0o600))

	_, err := Load(path)

	assert.Error(t, err)
}
