package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	c.normalizeScan()
	c.normalizeHashing()
	c.normalizeExecute()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.SourceDir, err = expandPath(c.Paths.SourceDir); err != nil {
		return fmt.Errorf("paths.source_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ReviewDir) == "" {
		c.Paths.ReviewDir = defaultReviewDir
	}
	if c.Paths.ReviewDir, err = expandPath(c.Paths.ReviewDir); err != nil {
		return fmt.Errorf("paths.review_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalog() error {
	var err error
	if c.Catalog.IndexPath, err = expandPath(strings.TrimSpace(c.Catalog.IndexPath)); err != nil {
		return fmt.Errorf("catalog.index_path: %w", err)
	}
	trimmed := make([]string, 0, len(c.Catalog.ImportCommand))
	for _, arg := range c.Catalog.ImportCommand {
		if arg = strings.TrimSpace(arg); arg != "" {
			trimmed = append(trimmed, arg)
		}
	}
	c.Catalog.ImportCommand = trimmed
	if c.Catalog.ImportTimeout <= 0 {
		c.Catalog.ImportTimeout = defaultImportTimeout
	}
	return nil
}

func (c *Config) normalizeScan() {
	seen := make(map[string]struct{}, len(c.Scan.Extensions))
	normalized := make([]string, 0, len(c.Scan.Extensions))
	for _, ext := range c.Scan.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		normalized = append(normalized, ext)
	}
	c.Scan.Extensions = normalized
	if c.Scan.MinSizeMB < 0 {
		c.Scan.MinSizeMB = 0
	}
}

func (c *Config) normalizeHashing() {
	if c.Hashing.Workers <= 0 {
		c.Hashing.Workers = defaultHashWorkers
	}
}

func (c *Config) normalizeExecute() {
	if c.Execute.BatchSize <= 0 {
		c.Execute.BatchSize = defaultBatchSize
	}
	if c.Execute.FreeSpaceMarginMB < 0 {
		c.Execute.FreeSpaceMarginMB = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
