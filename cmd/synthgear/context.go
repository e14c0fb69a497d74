package main

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"synthgear/internal/config"
	"synthgear/internal/logging"
	"synthgear/internal/services/flywheel"
)

type commandContext struct {
	configFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(out io.Writer, debug bool) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg, debug, out)
}

// platformClient returns nil when no api key is configured.
func (c *commandContext) platformClient(apiKey string, logger *slog.Logger) (*flywheel.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if apiKey = strings.TrimSpace(apiKey); apiKey == "" {
		apiKey = strings.TrimSpace(cfg.Platform.APIKey)
	}
	if apiKey == "" {
		return nil, nil
	}
	return flywheel.New(flywheel.Config{
		BaseURL:    cfg.Platform.BaseURL,
		APIKey:     apiKey,
		Timeout:    time.Duration(cfg.Platform.TimeoutSeconds) * time.Second,
		RetryCount: cfg.Platform.RetryCount,
	}, logger)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
