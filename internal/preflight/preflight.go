package preflight

import (
	"context"
	"fmt"
	"strings"

	"synthgear/internal/config"
	"synthgear/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the preflight checks for cfg. The platform check is skipped
// when pinger is nil and requirePlatform is false.
func RunAll(ctx context.Context, cfg *config.Config, pinger Pinger, requirePlatform bool) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckGearConfig(cfg.Paths.GearConfig, cfg.Pipeline.InputName))
	results = append(results, CheckDirectoryReadable("Input directory", cfg.Paths.InputDir))
	results = append(results, CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir))
	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))

	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Command}
		if !status.Available {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}

	if pinger != nil || requirePlatform {
		results = append(results, CheckPlatform(ctx, pinger))
	}
	return results
}

// Failed returns an ErrConfiguration error naming every failed check, or nil.
func Failed(results []Result) error {
	var failures []string
	for _, r := range results {
		if !r.Passed {
			failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "checks", strings.Join(failures, "; "), nil)
}
