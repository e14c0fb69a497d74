package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validatePlatform(); err != nil {
		return err
	}
	if err := c.validateDemographics(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePipeline() error {
	if strings.TrimSpace(c.Pipeline.Command) == "" {
		return errors.New("pipeline.command must be set")
	}
	if strings.TrimSpace(c.Pipeline.Shell) == "" {
		return errors.New("pipeline.shell must be set")
	}
	if c.Pipeline.TimeoutSeconds < 0 {
		return errors.New("pipeline.timeout_seconds must not be negative (0 disables the limit)")
	}
	return nil
}

func (c *Config) validatePlatform() error {
	if c.Platform.TimeoutSeconds <= 0 {
		return errors.New("platform.timeout_seconds must be positive")
	}
	if c.Platform.RetryCount < 0 {
		return errors.New("platform.retry_count must not be negative")
	}
	if url := c.Platform.BaseURL; url != "" && !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("platform.base_url must be an http(s) URL, got %q", url)
	}
	return nil
}

func (c *Config) validateDemographics() error {
	if len(c.Demographics.AcquisitionInclude) == 0 {
		return errors.New("demographics.acquisition_include must list at least one label fragment")
	}
	for _, include := range c.Demographics.AcquisitionInclude {
		for _, exclude := range c.Demographics.AcquisitionExclude {
			if include == exclude {
				return fmt.Errorf("demographics: %q is both included and excluded", include)
			}
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
