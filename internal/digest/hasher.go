package digest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"
)

// blockSize bounds per-read memory so digesting a multi-gigabyte file costs
// the same as a small one.
const blockSize = 64 * 1024

// Compute streams the file at path through SHA-256 and returns the lowercase
// hex digest. The digest depends only on content, never on path or metadata.
func Compute(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	buf := make([]byte, blockSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, readErr := file.Read(buf)
		if n > 0 {
			hash.Write(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("read for hashing: %w", readErr)
		}
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Cache persists (path, size, mtime) → digest mappings across runs.
// Implementations must treat a size or mtime mismatch as a miss.
type Cache interface {
	LookupDigest(ctx context.Context, path string, size int64, mtime time.Time) (string, bool, error)
	StoreDigest(ctx context.Context, path string, size int64, mtime time.Time, digest string) error
}

// nopCache satisfies Cache when no persistence is wanted.
type nopCache struct{}

func (nopCache) LookupDigest(context.Context, string, int64, time.Time) (string, bool, error) {
	return "", false, nil
}

func (nopCache) StoreDigest(context.Context, string, int64, time.Time, string) error {
	return nil
}

// NopCache returns a Cache that never hits.
func NopCache() Cache { return nopCache{} }
