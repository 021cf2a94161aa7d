package preflight

import (
	"path/filepath"

	"revoice/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all preflight checks for the given config. Every check
// runs unconditionally; a run needs all of these regardless of feature
// toggles.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	// The run store lives next to its lock file, so the parent directory
	// must be writable even before the database exists.
	if dir := filepath.Dir(cfg.Paths.DatabasePath); dir != "" && dir != "." {
		results = append(results, CheckDirectoryAccess("Database directory", dir))
	}

	results = append(results, CheckWorkerLauncher(cfg))

	return results
}

// AllPassed reports whether every check in results passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// FailedChecks returns only the failing results, for compact error output.
func FailedChecks(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
