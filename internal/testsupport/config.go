package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"synthgear/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a fresh temp directory laid out like
// a gear container (input, work, output, config.json).
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.BaseDir = base
	cfgVal.Paths.InputDir = filepath.Join(base, "input")
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.GearConfig = filepath.Join(base, "config.json")
	cfgVal.Pipeline.Command = filepath.Join(base, "app", "main.sh")
	cfgVal.Platform.BaseURL = "http://127.0.0.1:0/api"
	cfgVal.Platform.APIKey = "test"
	cfgVal.Platform.RetryCount = 0
	cfgVal.Logging.File = filepath.Join(base, "work", "synthgear.log")
	cfgVal.Ledger.Path = filepath.Join(base, "work", "synthgear.db")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPlatformURL points the platform client at a test server.
func WithPlatformURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Platform.BaseURL = url
	}
}

// WithLedgerDisabled turns off the run ledger.
func WithLedgerDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ledger.Enabled = false
	}
}

// WithPipelineScript writes an executable pipeline script with the given body
// at the configured command path.
func WithPipelineScript(body string) ConfigOption {
	return func(b *configBuilder) {
		target := b.cfg.Pipeline.Command
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			b.t.Fatalf("mkdir app dir: %v", err)
		}
		if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
			b.t.Fatalf("write pipeline script: %v", err)
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.BaseDir
}
