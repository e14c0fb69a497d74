package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"synthgear/internal/config"
	"synthgear/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("SYNTHGEAR_API_KEY", "")
	t.Setenv("SYNTHGEAR_BASE_DIR", "")
	cfg := testsupport.NewConfig(t, opts...)
	env := &cliTestEnv{
		cfg:        cfg,
		configPath: filepath.Join(testsupport.BaseDir(cfg), "synthgear.toml"),
	}
	env.writeConfig(t)
	return env
}

// writeConfig persists env.cfg; call it again after mutating the config.
func (e *cliTestEnv) writeConfig(t *testing.T) {
	t.Helper()
	data, err := toml.Marshal(e.cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(e.configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// writeManifest writes config.json with one file input and the given gear config.
func (e *cliTestEnv) writeManifest(t *testing.T, gearConfig map[string]any) {
	t.Helper()
	inputPath := filepath.Join(e.cfg.InputPath(e.cfg.Pipeline.InputName), "T2_AXI.nii.gz")
	testsupport.WriteFile(t, inputPath, 8)
	doc := map[string]any{
		"config": gearConfig,
		"inputs": map[string]any{
			e.cfg.Pipeline.InputName: map[string]any{
				"base":     "file",
				"location": map[string]any{"path": inputPath, "name": "T2_AXI.nii.gz"},
			},
		},
		"destination": map[string]any{"id": "ana-1", "type": "analysis"},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	if err := os.WriteFile(e.cfg.Paths.GearConfig, data, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
