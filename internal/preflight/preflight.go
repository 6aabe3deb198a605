// Package preflight verifies the environment before a run: directory
// permissions, review-location free space, catalog index readability, and
// ledger health. The status command surfaces these results so an operator
// sees a misconfiguration before any file is touched.
package preflight

import (
	"context"

	"offload/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every applicable check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		// Renaming files out of the source tree needs write access on its
		// directories, not just read.
		CheckDirectoryAccess("Source directory", cfg.Paths.SourceDir),
		CheckDirectoryAccess("Review directory", cfg.Paths.ReviewDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFreeSpace("Review free space", cfg.Paths.ReviewDir, cfg.FreeSpaceMarginBytes()),
	}

	if cfg.Catalog.IndexPath != "" {
		results = append(results, CheckCatalogIndex(ctx, cfg.Catalog.IndexPath))
	} else {
		results = append(results, Result{Name: "Catalog index", Detail: "index_path not configured"})
	}

	results = append(results, CheckLedger(cfg))
	return results
}
