package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"synthgear/internal/testsupport"
)

func TestCheckPassesWithPlatform(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"release":"19.4.0"}`))
	}))
	defer server.Close()

	env := setupCLITestEnv(t,
		testsupport.WithPipelineScript("exit 0"),
		testsupport.WithPlatformURL(server.URL+"/api"),
	)
	env.writeManifest(t, map[string]any{})
	if err := env.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	out, _, err := runCLI(t, []string{"check", "--platform"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "Gear config:")
	requireContains(t, out, "[OK] reachable (release 19.4.0)")
	requireContains(t, out, env.configPath)
}

func TestCheckReportsFailures(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Platform.APIKey = ""
	env.writeConfig(t)

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err == nil {
		t.Fatalf("expected check to fail, output:\n%s", out)
	}
	requireContains(t, out, "Pipeline:")
	requireContains(t, out, "[ERROR]")
	requireContains(t, out, "[WARN] skipped (no api key)")
}
