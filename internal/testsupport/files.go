package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// MkdirAll creates a directory tree, failing the test on error.
func MkdirAll(t testing.TB, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path string, content []byte) {
	t.Helper()
	MkdirAll(t, filepath.Dir(path))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteSizedFile writes a file of exactly size bytes filled with a repeating
// marker so distinct files get distinct digests.
func WriteSizedFile(t testing.TB, path string, size int64, marker byte) {
	t.Helper()
	WriteFile(t, path, bytes.Repeat([]byte{marker}, int(size)))
}

// Touch sets a file's mtime, failing the test on error.
func Touch(t testing.TB, path string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}
