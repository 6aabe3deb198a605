package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateHashing(); err != nil {
		return err
	}
	if err := c.validateExecute(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.SourceDir) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/offload/config.toml"
		}
		return fmt.Errorf("paths.source_dir is required. Edit %s (create with 'offload config init')", defaultPath)
	}
	if c.Paths.ReviewDir == c.Paths.SourceDir {
		return errors.New("paths.review_dir must differ from paths.source_dir")
	}
	if strings.HasPrefix(c.Paths.ReviewDir+"/", c.Paths.SourceDir+"/") {
		return errors.New("paths.review_dir must not live inside paths.source_dir")
	}
	return nil
}

func (c *Config) validateScan() error {
	if len(c.Scan.Extensions) == 0 {
		return errors.New("scan.extensions must list at least one extension")
	}
	return nil
}

func (c *Config) validateHashing() error {
	if c.Hashing.Workers > 32 {
		return errors.New("hashing.workers must be 32 or fewer")
	}
	return nil
}

func (c *Config) validateExecute() error {
	if c.Execute.BatchSize > 10000 {
		return errors.New("execute.batch_size must be 10000 or fewer")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
