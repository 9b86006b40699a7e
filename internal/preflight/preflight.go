package preflight

import (
	"context"

	"shortline/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// AllPassed reports whether every result in the set passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

// FailedNames lists the names of checks that did not pass.
func FailedNames(results []Result) []string {
	var names []string
	for _, result := range results {
		if !result.Passed {
			names = append(names, result.Name)
		}
	}
	return names
}

// RunAll executes all preflight checks for the given config. Network checks
// against the script and footage providers are included, so callers should
// treat this as an expensive call and not run it per tick.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckRenderBinaries()...)
	results = append(results, CheckScriptAPI(ctx, cfg))
	results = append(results, CheckFootageAPI(ctx, cfg))
	results = append(results, CheckUploadCredentialFiles(cfg))

	return results
}

// RunLocal executes only the checks that never touch the network. The
// orchestrator uses this per job; the full set runs at daemon start.
func RunLocal(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	results = append(results, CheckRenderBinaries()...)
	results = append(results, CheckUploadCredentialFiles(cfg))
	return results
}
