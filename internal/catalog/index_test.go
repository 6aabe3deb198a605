package catalog_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"offload/internal/catalog"
	"offload/internal/services"
	"offload/internal/testsupport"
)

func TestOpenIndexMissingFile(t *testing.T) {
	_, err := catalog.OpenIndex(filepath.Join(t.TempDir(), "absent.db"))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing index, got %v", err)
	}
}

func TestOpenIndexEmptyPath(t *testing.T) {
	_, err := catalog.OpenIndex("")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty path, got %v", err)
	}
}

func TestLookupDigest(t *testing.T) {
	path := testsupport.NewCatalogIndex(t,
		testsupport.CatalogAsset{Filename: "IMG_0001.mov", Size: 100, Digest: "abc"},
		testsupport.CatalogAsset{Filename: "IMG_0002.mov", Size: 200, Digest: "def"},
	)

	index, err := catalog.OpenIndex(path)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer index.Close()

	ctx := context.Background()

	asset, err := index.LookupDigest(ctx, "abc")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if asset == nil || asset.Filename != "IMG_0001.mov" || asset.Size != 100 {
		t.Fatalf("unexpected asset: %+v", asset)
	}

	asset, err = index.LookupDigest(ctx, "nope")
	if err != nil {
		t.Fatalf("lookup miss: %v", err)
	}
	if asset != nil {
		t.Fatalf("expected nil asset for unknown digest, got %+v", asset)
	}

	// Empty digests never match anything.
	asset, err = index.LookupDigest(ctx, "")
	if err != nil || asset != nil {
		t.Fatalf("empty digest should be a miss, got %+v err %v", asset, err)
	}
}

func TestLookupNameSize(t *testing.T) {
	path := testsupport.NewCatalogIndex(t,
		testsupport.CatalogAsset{Filename: "IMG_0001.mov", Size: 100, Digest: "abc"},
	)

	index, err := catalog.OpenIndex(path)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer index.Close()

	ctx := context.Background()

	asset, err := index.LookupNameSize(ctx, "IMG_0001.mov", 100)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if asset == nil || asset.Digest != "abc" {
		t.Fatalf("unexpected asset: %+v", asset)
	}

	// A size mismatch is not a match even with an identical filename.
	asset, err = index.LookupNameSize(ctx, "IMG_0001.mov", 101)
	if err != nil || asset != nil {
		t.Fatalf("size mismatch should miss, got %+v err %v", asset, err)
	}
}
