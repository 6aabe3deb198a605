package inventory

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"offload/internal/config"
	"offload/internal/logging"
	"offload/internal/services"
)

// FileRecord identifies one candidate file discovered in the source tree.
// Digest is filled in later by the hashing phase; it stays empty when the
// file could not be read.
type FileRecord struct {
	Path    string
	Size    int64
	ModTime time.Time
	Digest  string
}

// Stats summarizes one walk of the source tree.
type Stats struct {
	Visited           int
	Matched           int
	SkippedUnreadable int
	SkippedIrregular  int
}

// Scanner walks a source tree applying extension and size filters.
type Scanner struct {
	root     string
	exts     map[string]struct{}
	minBytes int64
	logger   *slog.Logger
}

// NewScanner builds a scanner from configuration.
func NewScanner(cfg *config.Config, logger *slog.Logger) *Scanner {
	exts := make(map[string]struct{}, len(cfg.Scan.Extensions))
	for _, ext := range cfg.Scan.Extensions {
		exts[ext] = struct{}{}
	}
	return &Scanner{
		root:     cfg.Paths.SourceDir,
		exts:     exts,
		minBytes: cfg.MinSizeBytes(),
		logger:   logging.NewComponentLogger(logger, "scanner"),
	}
}

// Walk streams matching records to visit in walk order. A visit error stops
// the walk and is returned verbatim. Permission failures on entries are
// counted and skipped; a missing or unreadable root is an error.
func (s *Scanner) Walk(ctx context.Context, visit func(FileRecord) error) (Stats, error) {
	var stats Stats

	info, err := os.Stat(s.root)
	if err != nil {
		return stats, services.Wrap(services.ErrConfiguration, "scan", "stat source", "Source directory unavailable", err)
	}
	if !info.IsDir() {
		return stats, services.Wrap(services.ErrConfiguration, "scan", "stat source", "Source path is not a directory", nil)
	}

	walkErr := filepath.WalkDir(s.root, func(path string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			stats.SkippedUnreadable++
			s.logger.Debug("skipping unreadable entry", logging.String(logging.FieldPath, path), logging.Error(err))
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}

		stats.Visited++
		if entry.Type()&fs.ModeSymlink != 0 || !entry.Type().IsRegular() {
			stats.SkippedIrregular++
			return nil
		}
		if _, ok := s.exts[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}

		fileInfo, err := entry.Info()
		if err != nil {
			stats.SkippedUnreadable++
			s.logger.Debug("skipping unstatable file", logging.String(logging.FieldPath, path), logging.Error(err))
			return nil
		}
		if fileInfo.Size() < s.minBytes {
			return nil
		}

		stats.Matched++
		return visit(FileRecord{
			Path:    path,
			Size:    fileInfo.Size(),
			ModTime: fileInfo.ModTime(),
		})
	})

	if walkErr != nil {
		return stats, walkErr
	}

	if stats.SkippedUnreadable > 0 {
		s.logger.Warn("scan skipped unreadable entries",
			logging.Int("skipped", stats.SkippedUnreadable),
			logging.String("hint", "grant read access to the source tree to include them"))
	}
	return stats, nil
}

// Scan collects all matching records into a slice.
func (s *Scanner) Scan(ctx context.Context) ([]FileRecord, Stats, error) {
	var records []FileRecord
	stats, err := s.Walk(ctx, func(record FileRecord) error {
		records = append(records, record)
		return nil
	})
	return records, stats, err
}
