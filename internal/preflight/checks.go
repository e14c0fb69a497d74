package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"synthgear/internal/config"
	"synthgear/internal/deps"
	"synthgear/internal/gearcontext"
	"synthgear/internal/services"
	"synthgear/internal/services/flywheel"
)

// Pinger is the platform call used to verify connectivity.
type Pinger interface {
	Ping(ctx context.Context) (flywheel.Version, error)
}

// CheckPlatform verifies that the platform API is reachable and the key is accepted.
func CheckPlatform(ctx context.Context, pinger Pinger) Result {
	const name = "Platform API"
	if pinger == nil {
		return Result{Name: name, Detail: "api key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	version, err := pinger.Ping(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizePlatformError(err)}
	}
	detail := "reachable"
	if version.Release != "" {
		detail = fmt.Sprintf("reachable (release %s)", version.Release)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckDirectoryReadable verifies that the directory exists and can be listed.
func CheckDirectoryReadable(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "read ok")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// CheckGearConfig verifies the run configuration parses and names the input file.
func CheckGearConfig(path, inputName string) Result {
	const name = "Gear config"
	manifest, err := gearcontext.Load(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	loc, err := manifest.InputFile(inputName)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if _, err := os.Stat(loc.Path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("input %s unreadable: %v", loc.Path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (input %s)", path, loc.Name)}
}

// CheckSystemDeps evaluates the executables the pipeline needs.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "Shell",
			Command:     cfg.Pipeline.Shell,
			Description: "Runs the segmentation pipeline",
		},
		{
			Name:        "Pipeline",
			Command:     cfg.Pipeline.Command,
			Description: "Segmentation pipeline script",
		},
	}
	return deps.CheckBinaries(requirements)
}

func summarizePlatformError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "ping timed out (platform unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "ping timed out (platform unreachable)"
	}
	if errors.Is(err, services.ErrConfiguration) {
		return "api key rejected"
	}
	return err.Error()
}
