package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizePlatform()
	c.normalizeDemographics()
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	return c.normalizeLedger()
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.BaseDir) == "" {
		c.Paths.BaseDir = defaultBaseDir
	}
	if c.Paths.BaseDir, err = expandPath(strings.TrimSpace(c.Paths.BaseDir)); err != nil {
		return fmt.Errorf("paths.base_dir: %w", err)
	}
	derived := []struct {
		key    string
		target *string
		rel    string
	}{
		{"paths.input_dir", &c.Paths.InputDir, "input"},
		{"paths.work_dir", &c.Paths.WorkDir, "work"},
		{"paths.output_dir", &c.Paths.OutputDir, "output"},
		{"paths.gear_config", &c.Paths.GearConfig, "config.json"},
	}
	for _, d := range derived {
		value := strings.TrimSpace(*d.target)
		if value == "" {
			value = filepath.Join(c.Paths.BaseDir, d.rel)
		}
		if *d.target, err = expandPath(value); err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
	}
	return nil
}

func (c *Config) normalizePipeline() {
	c.Pipeline.Command = strings.TrimSpace(c.Pipeline.Command)
	if c.Pipeline.Command == "" {
		c.Pipeline.Command = filepath.Join(c.Paths.BaseDir, defaultPipelineScript)
	}
	c.Pipeline.Shell = strings.TrimSpace(c.Pipeline.Shell)
	if c.Pipeline.Shell == "" {
		c.Pipeline.Shell = defaultPipelineShell
	}
	c.Pipeline.InputName = strings.TrimSpace(c.Pipeline.InputName)
	if c.Pipeline.InputName == "" {
		c.Pipeline.InputName = defaultPipelineInputName
	}
}

func (c *Config) normalizePlatform() {
	c.Platform.BaseURL = strings.TrimRight(strings.TrimSpace(c.Platform.BaseURL), "/")
	c.Platform.APIKey = strings.TrimSpace(c.Platform.APIKey)
	c.Platform.APIKeyInput = strings.TrimSpace(c.Platform.APIKeyInput)
	if c.Platform.APIKeyInput == "" {
		c.Platform.APIKeyInput = defaultAPIKeyInput
	}
	if c.Platform.TimeoutSeconds <= 0 {
		c.Platform.TimeoutSeconds = defaultPlatformTimeout
	}
}

func (c *Config) normalizeDemographics() {
	c.Demographics.CustomAgeKey = strings.TrimSpace(c.Demographics.CustomAgeKey)
	if c.Demographics.CustomAgeKey == "" {
		c.Demographics.CustomAgeKey = defaultCustomAgeKey
	}
	c.Demographics.AcquisitionInclude = compactTokens(c.Demographics.AcquisitionInclude)
	c.Demographics.AcquisitionExclude = compactTokens(c.Demographics.AcquisitionExclude)
}

// compactTokens trims tokens and drops blanks and duplicates. Case is kept
// because acquisition matching is case-sensitive.
func compactTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	file := strings.TrimSpace(c.Logging.File)
	if file == "" {
		file = filepath.Join(c.Paths.WorkDir, defaultLogFileName)
	}
	var err error
	if c.Logging.File, err = expandPath(file); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	return nil
}

func (c *Config) normalizeLedger() error {
	path := strings.TrimSpace(c.Ledger.Path)
	if path == "" {
		path = filepath.Join(c.Paths.WorkDir, defaultLedgerFileName)
	}
	var err error
	if c.Ledger.Path, err = expandPath(path); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	return nil
}
