package testsupport

import (
	"path/filepath"
	"testing"

	"offload/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// The source directory is created; review and log directories are left to
// EnsureDirectories so tests can exercise that path.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.SourceDir = filepath.Join(base, "source")
	cfg.Paths.ReviewDir = filepath.Join(base, "review")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Scan.MinSizeMB = 0
	cfg.Execute.BatchSize = 10
	cfg.Execute.FreeSpaceMarginMB = 0

	MkdirAll(t, cfg.Paths.SourceDir)

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithBatchSize overrides the execute batch size on the test config.
func WithBatchSize(size int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Execute.BatchSize = size
	}
}

// WithMinSizeMB overrides the scan size threshold on the test config.
func WithMinSizeMB(mb int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scan.MinSizeMB = mb
	}
}

// WithExtensions overrides the recognized extension list on the test config.
func WithExtensions(exts ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scan.Extensions = exts
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.SourceDir)
}
