package preflight

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"offload/internal/catalog"
	"offload/internal/config"
	"offload/internal/ledger"
	"offload/internal/logging"
)

// CheckDirectoryAccess verifies that the directory exists and is readable
// and writable.
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

// CheckFreeSpace probes available space at path and fails when it is below
// the configured margin.
func CheckFreeSpace(name, path string, marginBytes int64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := int64(stat.Bavail) * int64(stat.Bsize)
	detail := fmt.Sprintf("%s free at %s", humanize.IBytes(uint64(free)), path)
	if free < marginBytes {
		return Result{Name: name, Detail: detail + fmt.Sprintf(" (below %s margin)", humanize.IBytes(uint64(marginBytes)))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckCatalogIndex verifies the catalog index database opens read-only and
// answers a lookup.
func CheckCatalogIndex(ctx context.Context, path string) Result {
	const name = "Catalog index"

	index, err := catalog.OpenIndex(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer index.Close()

	if _, err := index.LookupNameSize(ctx, "preflight-probe", -1); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: query: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (readable)", path)}
}

// CheckLedger opens the ledger database and runs its schema check.
func CheckLedger(cfg *config.Config) Result {
	const name = "Decision ledger"

	store, err := ledger.Open(cfg, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", cfg.LedgerPath(), err)}
	}
	defer store.Close()

	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (schema ok)", store.Path())}
}
