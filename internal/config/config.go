// Package config assembles the client configuration from three layers:
// built-in defaults, an optional YAML file, and environment variables
// (highest precedence). A .env file in the working directory is honored.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cardtrader/cardtrader/internal/api"
)

// Config holds every tunable of the client.
type Config struct {
	// BaseURL is the marketplace API root.
	BaseURL string `yaml:"base_url" env:"CARDTRADER_BASE_URL"`
	// PageSize is the rpp parameter for list endpoints.
	PageSize int `yaml:"page_size" env:"CARDTRADER_PAGE_SIZE"`
	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout" env:"CARDTRADER_TIMEOUT"`
	// StaleAfter is the cache freshness window.
	StaleAfter time.Duration `yaml:"stale_after" env:"CARDTRADER_STALE_AFTER"`
	// RequestsPerSecond throttles outgoing requests; 0 disables throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"CARDTRADER_RPS"`
	// StateDir is where session and preference records are persisted.
	StateDir string `yaml:"state_dir" env:"CARDTRADER_STATE_DIR"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"CARDTRADER_LOG_LEVEL"`
	// LogFormat is "console" or "json".
	LogFormat string `yaml:"log_format" env:"CARDTRADER_LOG_FORMAT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseURL:    api.DefaultBaseURL,
		PageSize:   100,
		Timeout:    30 * time.Second,
		StaleAfter: 5 * time.Minute,
		LogLevel:   "info",
		LogFormat:  "console",
	}
}

// Load builds the effective configuration. The YAML file at path is merged
// over the defaults when it exists; environment variables win over both.
// An empty path means the default location under the user config directory.
func Load(path string) (Config, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = defaultConfigPath()
	}
	if path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("config: decode environment: %w", err)
	}

	if cfg.StateDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Config{}, fmt.Errorf("config: resolve state directory: %w", err)
		}
		cfg.StateDir = filepath.Join(dir, "cardtrader")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = Default().PageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = Default().Timeout
	}
	return cfg, nil
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "cardtrader", "config.yaml")
}

// mergeFile overlays the YAML file at path onto cfg. A missing file is fine;
// a malformed one is not.
func mergeFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}
