package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"obsdemux/internal/config"
	"obsdemux/internal/deps"
	"obsdemux/internal/obsws"
	"obsdemux/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Pinger verifies controller connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{CheckDirectoryAccess("State directory", cfg.Paths.StateDir)}
	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, fromDep(ctx, status))
	}
	if cfg.Demux.Enabled || cfg.OBS.ListenEvents {
		ctrl := obsws.NewController(cfg.OBSAddress(), cfg.OBS.Password, cfg.OBSRequestTimeout(), nil)
		results = append(results, CheckController(ctx, ctrl))
	}
	return results
}

// Failed filters results down to failing checks.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// CheckSystemDeps evaluates the binaries the configuration needs.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{deps.FFmpegRequirement(cfg.Demux.FFmpegBinary)})
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
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
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckController verifies that OBS answers and accepts the password.
func CheckController(ctx context.Context, p Pinger) Result {
	const name = "OBS websocket"
	err := p.Ping(ctx)
	switch {
	case err == nil:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	case errors.Is(err, services.ErrControllerAuth):
		return Result{Name: name, Detail: "auth failed (check obs.password)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
}

func fromDep(ctx context.Context, s deps.Status) Result {
	if s.Available {
		detail := s.Command
		if version, err := deps.FFmpegVersion(ctx, s.Command); err == nil {
			detail = fmt.Sprintf("%s (%s)", s.Command, version)
		}
		return Result{Name: s.Name, Passed: true, Detail: detail}
	}
	return Result{Name: s.Name, Passed: s.Optional, Detail: s.Detail}
}
