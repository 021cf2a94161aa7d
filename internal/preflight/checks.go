package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"revoice/internal/config"
	"revoice/internal/deps"
	"revoice/internal/worker"
)

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

// CheckWorkerLauncher verifies that the configured worker command resolves
// to a runnable binary. For the embedded worker this also materializes the
// worker script, so a read-only staging directory fails here rather than
// at spawn time.
func CheckWorkerLauncher(cfg *config.Config) Result {
	const name = "Synthesis worker"

	launcher, err := worker.NewLauncher(cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("launch command invalid: %v", err)}
	}

	statuses := deps.CheckBinaries([]deps.Requirement{{
		Name:    name,
		Command: launcher.Binary(),
	}})
	status := statuses[0]
	if !status.Available {
		detail := status.Detail
		if launcher.Binary() == worker.UVXCommand {
			detail += " (install uv to run the embedded worker)"
		}
		return Result{Name: name, Detail: detail}
	}
	return Result{Name: name, Passed: true, Detail: status.Detail}
}

// CheckSystemDeps evaluates the external binaries the configured pipeline
// needs. The status command uses this to render the dependency table.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	launcher, err := worker.NewLauncher(cfg)
	if err != nil {
		return []deps.Status{{
			Name:        "Worker launcher",
			Description: "Launches synthesis worker subprocesses",
			Detail:      err.Error(),
		}}
	}

	requirements := []deps.Requirement{
		{
			Name:        "Worker launcher",
			Command:     launcher.Binary(),
			Description: "Launches synthesis worker subprocesses",
		},
	}
	if cfg.Synthesis.Device == "cuda" {
		requirements = append(requirements, deps.Requirement{
			Name:        "nvidia-smi",
			Command:     "nvidia-smi",
			Description: "Indicates a usable CUDA driver for GPU synthesis",
			Optional:    true,
		})
	}
	return deps.CheckBinaries(requirements)
}
