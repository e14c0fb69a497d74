package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

type envOverrides struct {
	BaseDir     string `env:"SYNTHGEAR_BASE_DIR"`
	APIKey      string `env:"SYNTHGEAR_API_KEY"`
	PlatformURL string `env:"SYNTHGEAR_PLATFORM_URL"`
	LogLevel    string `env:"SYNTHGEAR_LOG_LEVEL"`
	LogFormat   string `env:"SYNTHGEAR_LOG_FORMAT"`
}

// applyEnv layers environment variables over file values. Unset or blank
// variables leave the file value untouched.
func (c *Config) applyEnv() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if v := strings.TrimSpace(overrides.BaseDir); v != "" {
		c.Paths.BaseDir = v
	}
	if v := strings.TrimSpace(overrides.APIKey); v != "" {
		c.Platform.APIKey = v
	}
	if v := strings.TrimSpace(overrides.PlatformURL); v != "" {
		c.Platform.BaseURL = v
	}
	if v := strings.TrimSpace(overrides.LogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(overrides.LogFormat); v != "" {
		c.Logging.Format = v
	}
	return nil
}
