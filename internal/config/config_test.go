package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardtrader/cardtrader/internal/api"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CARDTRADER_BASE_URL", "CARDTRADER_PAGE_SIZE", "CARDTRADER_TIMEOUT",
		"CARDTRADER_STALE_AFTER", "CARDTRADER_RPS", "CARDTRADER_STATE_DIR",
		"CARDTRADER_LOG_LEVEL", "CARDTRADER_LOG_FORMAT",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, api.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.StaleAfter)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.StateDir)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: https://staging.example.com\npage_size: 25\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://staging.example.com", cfg.BaseURL)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: https://staging.example.com\n"), 0o600))

	t.Setenv("CARDTRADER_BASE_URL", "https://env.example.com")
	t.Setenv("CARDTRADER_PAGE_SIZE", "10")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.BaseURL)
	assert.Equal(t, 10, cfg.PageSize)
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_NonPositiveValuesFallBack(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("page_size: -1\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.PageSize)
}
