// Package digest computes streaming SHA-256 content digests and coordinates
// a bounded worker pool over the scan inventory. Digests are cached keyed by
// (path, size, mtime); a cache entry is invalidated whenever the live file's
// size or mtime differs, so a modified file is always re-hashed.
package digest
