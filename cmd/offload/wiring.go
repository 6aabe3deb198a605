package main

import (
	"log/slog"

	"offload/internal/auditlog"
	"offload/internal/catalog"
	"offload/internal/config"
	"offload/internal/ledger"
	"offload/internal/logging"
	"offload/internal/matcher"
)

// runtimeServices bundles the collaborators most commands need.
type runtimeServices struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *ledger.Store
	index   catalog.Index
	matcher *matcher.Matcher
	audit   *auditlog.Log
}

// openServices wires the ledger, catalog index, matcher, and audit log.
// Callers must invoke the returned cleanup. withIndex is false for commands
// that never consult the catalog.
func (c *commandContext) openServices(withIndex bool) (*runtimeServices, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, err
	}

	store, err := ledger.Open(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	services := &runtimeServices{cfg: cfg, logger: logger, store: store}
	cleanup := func() {
		_ = services.audit.Close()
		if services.index != nil {
			_ = services.index.Close()
		}
		_ = store.Close()
	}

	if withIndex {
		index, err := catalog.OpenIndex(cfg.Catalog.IndexPath)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		services.index = index
		services.matcher = matcher.New(index, logger)
	}

	audit, err := auditlog.Open(cfg)
	if err != nil {
		if services.index != nil {
			_ = services.index.Close()
		}
		_ = store.Close()
		return nil, nil, err
	}
	services.audit = audit

	services.logger = logger.With(logging.String(logging.FieldRunID, audit.RunID()))
	return services, cleanup, nil
}
