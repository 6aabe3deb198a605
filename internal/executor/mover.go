package executor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"offload/internal/services"
)

// Review subdirectories by decision category.
const (
	ReviewSubdirAlreadyInCatalog = "already_in_catalog"
	ReviewSubdirNewlyImported    = "newly_imported"
)

// moveToReview renames source into destDir, allocating a numbered name when
// the destination already exists. Rename is the only mechanism: a
// cross-device destination is refused rather than silently degraded to a
// copy, because a copy would leave an unverified duplicate as the file's
// only trail.
func moveToReview(source, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "execute", "ensure review dir", destDir, err)
	}

	target, err := nextTargetPath(destDir, filepath.Base(source))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "execute", "allocate target name", destDir, err)
	}

	if err := os.Rename(source, target); err != nil {
		var linkErr *os.LinkError
		if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
			return "", services.Wrap(services.ErrValidation, "execute", "move",
				"cross-device move refused; the review directory must share a filesystem with the source", err)
		}
		return "", services.Wrap(services.ErrTransient, "execute", "move", "rename into review directory", err)
	}
	return target, nil
}

// nextTargetPath finds the first free destination name, appending a numeric
// suffix before the extension on collision.
func nextTargetPath(dir, name string) (string, error) {
	const maxAttempts = 10000

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := name
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, attempt, ext)
		}
		full := filepath.Join(dir, candidate)
		if _, err := os.Stat(full); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return full, nil
			}
			return "", err
		}
	}
	return "", fmt.Errorf("exhausted destination name slots in %s", dir)
}
