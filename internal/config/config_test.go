package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"synthgear/internal/config"
)

func TestLoadDefaultsDeriveFromBaseDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	base := t.TempDir()
	t.Setenv("SYNTHGEAR_BASE_DIR", base)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent")
	}

	checks := map[string]string{
		"input_dir":   filepath.Join(base, "input"),
		"work_dir":    filepath.Join(base, "work"),
		"output_dir":  filepath.Join(base, "output"),
		"gear_config": filepath.Join(base, "config.json"),
		"command":     filepath.Join(base, "app", "main.sh"),
		"log_file":    filepath.Join(base, "work", "synthgear.log"),
		"ledger":      filepath.Join(base, "work", "synthgear.db"),
	}
	got := map[string]string{
		"input_dir":   cfg.Paths.InputDir,
		"work_dir":    cfg.Paths.WorkDir,
		"output_dir":  cfg.Paths.OutputDir,
		"gear_config": cfg.Paths.GearConfig,
		"command":     cfg.Pipeline.Command,
		"log_file":    cfg.Logging.File,
		"ledger":      cfg.Ledger.Path,
	}
	for key, want := range checks {
		if got[key] != want {
			t.Fatalf("%s: got %q want %q", key, got[key], want)
		}
	}
	if cfg.Pipeline.Shell != "/bin/sh" {
		t.Fatalf("unexpected shell: %q", cfg.Pipeline.Shell)
	}
	if cfg.Demographics.CustomAgeKey != "age_months" {
		t.Fatalf("unexpected custom age key: %q", cfg.Demographics.CustomAgeKey)
	}
	if strings.Join(cfg.Demographics.AcquisitionInclude, ",") != "T2,AXI" {
		t.Fatalf("unexpected include tokens: %v", cfg.Demographics.AcquisitionInclude)
	}
	if !cfg.Demographics.LocalDICOMFallback || !cfg.Ledger.Enabled {
		t.Fatal("expected local DICOM fallback and ledger enabled by default")
	}
}

func TestLoadReadsFileAndEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "synthgear.toml")
	content := `
[paths]
base_dir = "` + dir + `"
output_dir = "` + filepath.Join(dir, "results") + `"

[pipeline]
command = "/opt/pipeline/run.sh"
timeout_seconds = 7200

[platform]
api_key = "file-key"
retry_count = 0

[demographics]
acquisition_include = [" T1 ", "T1", "SAG"]
acquisition_exclude = []

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SYNTHGEAR_API_KEY", "env-key")
	t.Setenv("SYNTHGEAR_PLATFORM_URL", "https://platform.example.org/api/")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config file to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.OutputDir != filepath.Join(dir, "results") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Paths.WorkDir != filepath.Join(dir, "work") {
		t.Fatalf("unexpected work dir: %q", cfg.Paths.WorkDir)
	}
	if cfg.Pipeline.Command != "/opt/pipeline/run.sh" || cfg.Pipeline.TimeoutSeconds != 7200 {
		t.Fatalf("unexpected pipeline config: %+v", cfg.Pipeline)
	}
	if cfg.Platform.APIKey != "env-key" {
		t.Fatalf("expected env api key to win, got %q", cfg.Platform.APIKey)
	}
	if cfg.Platform.BaseURL != "https://platform.example.org/api" {
		t.Fatalf("expected trimmed base url, got %q", cfg.Platform.BaseURL)
	}
	if cfg.Platform.RetryCount != 0 {
		t.Fatalf("expected retry count 0, got %d", cfg.Platform.RetryCount)
	}
	if strings.Join(cfg.Demographics.AcquisitionInclude, ",") != "T1,SAG" {
		t.Fatalf("expected compacted include tokens, got %v", cfg.Demographics.AcquisitionInclude)
	}
	if len(cfg.Demographics.AcquisitionExclude) != 0 {
		t.Fatalf("expected no exclude tokens, got %v", cfg.Demographics.AcquisitionExclude)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cases := map[string]string{
		"negative timeout": "[pipeline]\ntimeout_seconds = -1\n",
		"bad url":          "[platform]\nbase_url = \"ftp://nope\"\n",
		"empty include":    "[demographics]\nacquisition_include = []\n",
		"include excluded": "[demographics]\nacquisition_include = [\"T2\"]\nacquisition_exclude = [\"T2\"]\n",
		"bad level":        "[logging]\nlevel = \"verbose\"\n",
		"negative retries": "[platform]\nretry_count = -2\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.toml")
			body = "[paths]\nbase_dir = \"" + dir + "\"\n" + body
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, _, err := config.Load(path); err == nil {
				t.Fatalf("expected validation error for %s", name)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Paths.BaseDir != "/flywheel/v0" {
		t.Fatalf("unexpected sample base dir: %q", cfg.Paths.BaseDir)
	}
}

func TestEnsureDirectoriesCreatesWorkAndOutput(t *testing.T) {
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.OutputDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
	if filepath.Dir(cfg.LockPath()) != cfg.Paths.WorkDir {
		t.Fatalf("lock path should live in work dir, got %q", cfg.LockPath())
	}
}
