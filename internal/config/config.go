package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the gear's directory layout. Empty entries are derived from
// BaseDir during normalization.
type Paths struct {
	BaseDir    string `toml:"base_dir"`
	InputDir   string `toml:"input_dir"`
	WorkDir    string `toml:"work_dir"`
	OutputDir  string `toml:"output_dir"`
	GearConfig string `toml:"gear_config"`
}

// Pipeline contains configuration for the external segmentation pipeline.
type Pipeline struct {
	Command        string `toml:"command"`
	Shell          string `toml:"shell"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	InputName      string `toml:"input_name"`
}

// Platform contains configuration for the imaging-data platform API.
type Platform struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	APIKeyInput    string `toml:"api_key_input"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryCount     int    `toml:"retry_count"`
}

// Demographics controls how age and sex are recovered for a session.
type Demographics struct {
	// CustomAgeKey is the session info key holding an uploaded age in months.
	CustomAgeKey string `toml:"custom_age_key"`
	// AcquisitionInclude lists label fragments an acquisition must all contain.
	AcquisitionInclude []string `toml:"acquisition_include"`
	// AcquisitionExclude lists label fragments that disqualify an acquisition.
	AcquisitionExclude []string `toml:"acquisition_exclude"`
	// LocalDICOMFallback reads the input file as DICOM when the platform has no header.
	LocalDICOMFallback bool `toml:"local_dicom_fallback"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Ledger contains configuration for the SQLite run history.
type Ledger struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config encapsulates all configuration values for synthgear.
type Config struct {
	Paths        Paths        `toml:"paths"`
	Pipeline     Pipeline     `toml:"pipeline"`
	Platform     Platform     `toml:"platform"`
	Demographics Demographics `toml:"demographics"`
	Logging      Logging      `toml:"logging"`
	Ledger       Ledger       `toml:"ledger"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/synthgear/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("synthgear.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the work and output directories used by a run.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.WorkDir, ".synthgear.lock")
}

// InputPath returns the directory holding files for the named gear input.
func (c *Config) InputPath(name string) string {
	return filepath.Join(c.Paths.InputDir, name)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
