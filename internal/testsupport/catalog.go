package testsupport

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// CatalogAsset is one row for a fixture catalog index.
type CatalogAsset struct {
	Filename string
	Size     int64
	Digest   string
}

// NewCatalogIndex writes a SQLite catalog index fixture containing the given
// assets and returns its path.
func NewCatalogIndex(t testing.TB, assets ...CatalogAsset) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalog.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open catalog fixture: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE assets (
        filename TEXT NOT NULL,
        size_bytes INTEGER NOT NULL,
        content_digest TEXT NOT NULL
    )`)
	if err != nil {
		t.Fatalf("create assets table: %v", err)
	}

	for _, asset := range assets {
		_, err := db.Exec(
			"INSERT INTO assets (filename, size_bytes, content_digest) VALUES (?, ?, ?)",
			asset.Filename, asset.Size, asset.Digest)
		if err != nil {
			t.Fatalf("insert asset %s: %v", asset.Filename, err)
		}
	}
	return path
}
