// Package engine coordinates the discovery pipeline: walk the source tree,
// digest the candidates, evaluate each against the catalog, and upsert the
// results into the ledger. Discovery is read-only with respect to the source
// tree and idempotent with respect to the ledger.
package engine

import (
	"context"
	"log/slog"

	"offload/internal/auditlog"
	"offload/internal/config"
	"offload/internal/digest"
	"offload/internal/inventory"
	"offload/internal/ledger"
	"offload/internal/logging"
	"offload/internal/matcher"
	"offload/internal/services"
)

// DiscoverResult summarizes one discovery pass.
type DiscoverResult struct {
	Stats inventory.Stats
	// Records holds every candidate with whatever digest could be computed.
	Records []inventory.FileRecord
	// Unverifiable counts files whose digest could not be computed; they are
	// tracked under a path key and can never reach a confirmed verdict.
	Unverifiable int
	ByVerdict    map[matcher.Verdict]int
}

// Engine runs the discovery pipeline against one ledger store.
type Engine struct {
	cfg     *config.Config
	store   *ledger.Store
	matcher *matcher.Matcher
	pool    *digest.Pool
	audit   *auditlog.Log
	logger  *slog.Logger
}

// New wires the pipeline. The hashing pool reads and writes the ledger's
// digest cache so rescans only hash what changed.
func New(cfg *config.Config, store *ledger.Store, m *matcher.Matcher, audit *auditlog.Log, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		store:   store,
		matcher: m,
		pool:    digest.NewPool(cfg.Hashing.Workers, store.DigestCache(), logger),
		audit:   audit,
		logger:  logging.NewComponentLogger(logger, "engine"),
	}
}

// Discover scans, hashes, matches, and records every candidate file.
func (e *Engine) Discover(ctx context.Context) (DiscoverResult, error) {
	ctx = services.WithRunID(ctx, e.audit.RunID())
	ctx = services.WithPhase(ctx, "discover")
	logger := logging.WithContext(ctx, e.logger)

	if err := e.audit.Append(ctx, auditlog.ActionRunStarted, "", "", "discover", nil); err != nil {
		return DiscoverResult{}, err
	}

	scanner := inventory.NewScanner(e.cfg, e.logger)
	records, stats, err := scanner.Scan(ctx)
	if err != nil {
		return DiscoverResult{Stats: stats}, err
	}
	logger.Info("scan complete",
		logging.Int("visited", stats.Visited),
		logging.Int("matched", stats.Matched))

	result := DiscoverResult{
		Stats:     stats,
		ByVerdict: make(map[matcher.Verdict]int),
	}

	for _, hashed := range e.pool.HashAll(ctx, records) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		record := hashed.Record

		if hashed.Err != nil {
			if services.IsFatal(hashed.Err) {
				return result, hashed.Err
			}
			result.Unverifiable++
		} else {
			if err := e.audit.Append(ctx, auditlog.ActionHashComputed, ledger.DigestKey(record.Digest), record.Path, "", nil); err != nil {
				return result, err
			}
		}

		match := e.matcher.Evaluate(ctx, record)
		result.ByVerdict[match.Verdict]++
		if match.Preserved() {
			if err := e.audit.Append(ctx, auditlog.ActionMatchFound, ledger.KeyFor(record.Path, record.Digest), record.Path, string(match.Verdict), nil); err != nil {
				return result, err
			}
		}

		if err := e.recordCandidate(ctx, record, match); err != nil {
			return result, err
		}
		result.Records = append(result.Records, record)
	}

	err = e.audit.Append(ctx, auditlog.ActionRunFinished, "", "", "discover", nil)
	return result, err
}

// recordCandidate upserts the scan result, migrating any earlier
// path-fallback entry to the digest key once hashing succeeds.
func (e *Engine) recordCandidate(ctx context.Context, record inventory.FileRecord, match matcher.Match) error {
	key := ledger.KeyFor(record.Path, record.Digest)

	if record.Digest != "" {
		if err := e.store.Rekey(ctx, ledger.PathKey(record.Path), key); err != nil {
			return err
		}
	}

	return e.store.UpsertScan(ctx, ledger.Record{
		IdentityKey:     key,
		Path:            record.Path,
		Size:            record.Size,
		ModTime:         record.ModTime,
		Digest:          record.Digest,
		Verdict:         string(match.Verdict),
		VerdictEvidence: string(match.Evidence),
	})
}
