package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	SourceDir string `toml:"source_dir"`
	ReviewDir string `toml:"review_dir"`
	LogDir    string `toml:"log_dir"`
}

// Scan contains inventory scanner filters.
type Scan struct {
	Extensions []string `toml:"extensions"`
	MinSizeMB  int      `toml:"min_size_mb"`
}

// Hashing contains content hasher parallelism settings.
type Hashing struct {
	Workers int `toml:"workers"`
}

// Catalog contains the external catalog collaborator settings.
type Catalog struct {
	IndexPath     string   `toml:"index_path"`
	ImportCommand []string `toml:"import_command"`
	ImportTimeout int      `toml:"import_timeout"`
}

// Execute contains batch execution limits.
type Execute struct {
	BatchSize         int `toml:"batch_size"`
	FreeSpaceMarginMB int `toml:"free_space_margin_mb"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for offload.
//
// Configuration sections by subsystem:
//   - Paths: source tree, review destination, and log/state directory
//   - Scan: recognized extensions and minimum file size
//   - Hashing: bounded worker count for content digesting
//   - Catalog: read-only index database and opaque import command
//   - Execute: batch size cap and free-space margin
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Scan    Scan    `toml:"scan"`
	Hashing Hashing `toml:"hashing"`
	Catalog Catalog `toml:"catalog"`
	Execute Execute `toml:"execute"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/offload/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. The boolean reports whether a
// config file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("offload.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories offload owns. The source tree is
// never created: the engine only reads from it and moves files out of it.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.ReviewDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the location of the decision ledger database.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.LogDir, "ledger.db")
}

// AuditLogPath returns the location of the append-only audit log.
func (c *Config) AuditLogPath() string {
	return filepath.Join(c.Paths.LogDir, "audit.jsonl")
}

// LockPath returns the run lock file guarding single-writer execution.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "offload.lock")
}

// MinSizeBytes returns the scan size threshold in bytes.
func (c *Config) MinSizeBytes() int64 {
	return int64(c.Scan.MinSizeMB) * 1024 * 1024
}

// FreeSpaceMarginBytes returns the batch headroom safety margin in bytes.
func (c *Config) FreeSpaceMarginBytes() int64 {
	return int64(c.Execute.FreeSpaceMarginMB) * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
