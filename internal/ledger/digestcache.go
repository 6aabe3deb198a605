package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"offload/internal/services"
)

// DigestCache exposes the store's digest_cache table through the hashing
// cache interface. Entries are keyed by path and invalidated when size or
// mtime no longer match, so edited files are always rehashed.
type DigestCache struct {
	store *Store
}

// DigestCache returns the digest cache backed by this store.
func (s *Store) DigestCache() *DigestCache {
	return &DigestCache{store: s}
}

// LookupDigest returns the cached digest for path when size and mtime still
// match the cached values.
func (c *DigestCache) LookupDigest(ctx context.Context, path string, size int64, mtime time.Time) (string, bool, error) {
	var (
		cachedSize  int64
		cachedMtime int64
		digest      string
	)
	err := c.store.db.QueryRowContext(ensureContext(ctx),
		"SELECT size_bytes, mtime_ns, digest FROM digest_cache WHERE path = ?", path,
	).Scan(&cachedSize, &cachedMtime, &digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, services.Wrap(services.ErrPersistence, "ledger", "digest cache lookup", "query", err)
	}
	if cachedSize != size || cachedMtime != mtime.UnixNano() {
		return "", false, nil
	}
	return digest, true, nil
}

// StoreDigest records a freshly computed digest for path.
func (c *DigestCache) StoreDigest(ctx context.Context, path string, size int64, mtime time.Time, digest string) error {
	_, err := c.store.execWithRetry(ctx,
		`INSERT INTO digest_cache (path, size_bytes, mtime_ns, digest, computed_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(path) DO UPDATE SET
            size_bytes = excluded.size_bytes,
            mtime_ns = excluded.mtime_ns,
            digest = excluded.digest,
            computed_at = excluded.computed_at`,
		path, size, mtime.UnixNano(), digest, timestamp(time.Now()))
	if err != nil {
		return services.Wrap(services.ErrPersistence, "ledger", "digest cache store", "upsert", err)
	}
	return nil
}
