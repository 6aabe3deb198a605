package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"offload/internal/config"
	"offload/internal/logging"
	"offload/internal/services"
)

// Importer hands a file to the catalog application for ingestion. The import
// command is opaque: success means the command exited zero, nothing more.
// Membership is confirmed separately through the index.
type Importer interface {
	Import(ctx context.Context, path string) error
}

// CommandImporter runs a configured command with the file path appended as
// the final argument.
type CommandImporter struct {
	argv    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewCommandImporter builds an importer from the catalog configuration.
func NewCommandImporter(cfg *config.Config, logger *slog.Logger) (*CommandImporter, error) {
	if len(cfg.Catalog.ImportCommand) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "importer", "import_command is not configured", nil)
	}
	return &CommandImporter{
		argv:    cfg.Catalog.ImportCommand,
		timeout: time.Duration(cfg.Catalog.ImportTimeout) * time.Second,
		logger:  logging.NewComponentLogger(logger, "importer"),
	}, nil
}

// Import runs the import command for path, bounded by the configured timeout.
func (imp *CommandImporter) Import(ctx context.Context, path string) error {
	if imp.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, imp.timeout)
		defer cancel()
	}

	args := append(append([]string{}, imp.argv[1:]...), path)
	cmd := exec.CommandContext(ctx, imp.argv[0], args...)

	imp.logger.Debug("running import command",
		logging.String("command", imp.argv[0]),
		logging.String(logging.FieldPath, path))

	started := time.Now()
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if ctx.Err() == context.DeadlineExceeded {
			return services.Wrap(services.ErrExternalTool, "catalog", "import",
				fmt.Sprintf("import command timed out after %s", imp.timeout), err)
		}
		if detail != "" {
			return services.Wrap(services.ErrExternalTool, "catalog", "import", detail, err)
		}
		return services.Wrap(services.ErrExternalTool, "catalog", "import", "import command failed", err)
	}

	imp.logger.Debug("import command finished",
		logging.String(logging.FieldPath, path),
		logging.Duration("elapsed", time.Since(started)))
	return nil
}
