package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"

	"offload/internal/services"
)

// Asset is one catalog entry as far as membership checks care: enough to
// match by content digest or by filename and size.
type Asset struct {
	Filename string
	Size     int64
	Digest   string
}

// Index answers catalog membership questions. A nil *Asset with a nil error
// means the catalog has no matching entry.
type Index interface {
	// LookupDigest finds an asset whose content digest matches exactly.
	LookupDigest(ctx context.Context, digest string) (*Asset, error)
	// LookupNameSize finds an asset with the same base filename and byte size.
	LookupNameSize(ctx context.Context, filename string, size int64) (*Asset, error)
	Close() error
}

// SQLiteIndex reads the catalog's asset table from a SQLite file opened
// strictly read-only.
type SQLiteIndex struct {
	db   *sql.DB
	path string
}

// OpenIndex opens the catalog index database at path in read-only mode. The
// file must already exist; a catalog that cannot be read means no membership
// verdict can ever reach confirmed, so opening fails loudly instead.
func OpenIndex(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "open index", "index path is empty", nil)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro", url.PathEscape(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "open index", "open database", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "open index", fmt.Sprintf("catalog index %s unreadable", path), err)
	}
	return &SQLiteIndex{db: db, path: path}, nil
}

// Close releases the read-only connection.
func (i *SQLiteIndex) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	return i.db.Close()
}

// Path returns the index file location.
func (i *SQLiteIndex) Path() string {
	return i.path
}

func (i *SQLiteIndex) LookupDigest(ctx context.Context, digest string) (*Asset, error) {
	if digest == "" {
		return nil, nil
	}
	return i.lookup(ctx,
		"SELECT filename, size_bytes, content_digest FROM assets WHERE content_digest = ? LIMIT 1",
		digest)
}

func (i *SQLiteIndex) LookupNameSize(ctx context.Context, filename string, size int64) (*Asset, error) {
	return i.lookup(ctx,
		"SELECT filename, size_bytes, content_digest FROM assets WHERE filename = ? AND size_bytes = ? LIMIT 1",
		filename, size)
}

func (i *SQLiteIndex) lookup(ctx context.Context, query string, args ...any) (*Asset, error) {
	var asset Asset
	err := i.db.QueryRowContext(ctx, query, args...).Scan(&asset.Filename, &asset.Size, &asset.Digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "index lookup", "query", err)
	}
	return &asset, nil
}
