package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"offload/internal/auditlog"
	"offload/internal/catalog"
	"offload/internal/config"
	"offload/internal/ledger"
	"offload/internal/logging"
	"offload/internal/matcher"
	"offload/internal/services"
)

// Outcome is the per-file result line for the run summary.
type Outcome struct {
	Path        string
	IdentityKey string
	Decision    ledger.Decision
	Status      ledger.Status
	MovedPath   string
	Reason      string
}

// Summary aggregates one execution run. Failed entries are not yet safe to
// remove and are always listed, never folded into a count alone.
type Summary struct {
	Batches        int
	Moved          int
	Imported       int
	Failed         int
	Skipped        int
	ReclaimedBytes int64
	Outcomes       []Outcome
}

// FreeSpaceProbe reports the available bytes on the filesystem holding path.
type FreeSpaceProbe func(path string) (int64, error)

func statfsFreeSpace(path string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

// Option customizes an Executor.
type Option func(*Executor)

// WithFreeSpaceProbe replaces the statfs probe, for tests.
func WithFreeSpaceProbe(probe FreeSpaceProbe) Option {
	return func(e *Executor) {
		e.freeSpace = probe
	}
}

// Executor drains actionable ledger entries batch by batch.
type Executor struct {
	cfg       *config.Config
	store     *ledger.Store
	gate      *Gate
	importer  catalog.Importer
	audit     *auditlog.Log
	logger    *slog.Logger
	freeSpace FreeSpaceProbe
}

// New builds an executor. The importer may be nil when no entry carries an
// import_then_remove decision; hitting one then fails that entry, not the run.
func New(cfg *config.Config, store *ledger.Store, m *matcher.Matcher, importer catalog.Importer, audit *auditlog.Log, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		cfg:       cfg,
		store:     store,
		gate:      NewGate(m),
		importer:  importer,
		audit:     audit,
		logger:    logging.NewComponentLogger(logger, "executor"),
		freeSpace: statfsFreeSpace,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes every actionable entry under the run lock. Per-file failures
// mark that entry failed and continue; a persistence failure or an
// insufficient-headroom batch aborts the run.
func (e *Executor) Run(ctx context.Context) (Summary, error) {
	lock, err := AcquireRunLock(e.cfg.LockPath())
	if err != nil {
		return Summary{}, err
	}
	defer func() { _ = lock.Release() }()

	ctx = services.WithRunID(ctx, e.audit.RunID())
	ctx = services.WithPhase(ctx, "execute")

	if err := e.audit.Append(ctx, auditlog.ActionRunStarted, "", "", "execute", nil); err != nil {
		return Summary{}, err
	}

	entries, err := e.store.PendingWork(ctx)
	if err != nil {
		return Summary{}, err
	}

	// Failed entries re-enter at the start of their chain.
	for i, entry := range entries {
		if entry.Status != ledger.StatusFailed {
			continue
		}
		if _, err := e.store.RetryFailed(ctx, entry.IdentityKey); err != nil {
			return Summary{}, err
		}
		entries[i].Status = ledger.StatusPending
	}

	summary := Summary{}
	batchSize := e.cfg.Execute.BatchSize
	if batchSize <= 0 {
		batchSize = len(entries)
	}

	for start := 0; start < len(entries); start += batchSize {
		end := start + batchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[start:end]
		summary.Batches++

		if err := e.checkHeadroom(ctx, batch); err != nil {
			return summary, err
		}

		e.logger.Info("executing batch",
			logging.Int(logging.FieldBatch, summary.Batches),
			logging.Int("files", len(batch)))

		batchCtx := services.WithBatch(ctx, summary.Batches)
		for _, entry := range batch {
			if err := batchCtx.Err(); err != nil {
				return summary, err
			}
			if err := e.processEntry(batchCtx, entry, &summary); err != nil {
				return summary, err
			}
		}
	}

	err = e.audit.Append(ctx, auditlog.ActionRunFinished, "", "",
		fmt.Sprintf("moved=%d imported=%d failed=%d skipped=%d", summary.Moved, summary.Imported, summary.Failed, summary.Skipped), nil)
	return summary, err
}

// checkHeadroom re-validates the disk invariant before each batch: free
// space at the review location must cover the whole batch plus the margin.
func (e *Executor) checkHeadroom(ctx context.Context, batch []ledger.Record) error {
	var required int64
	for _, entry := range batch {
		required += entry.Size
	}
	required += e.cfg.FreeSpaceMarginBytes()

	free, err := e.freeSpace(e.cfg.Paths.ReviewDir)
	if err != nil {
		return services.Wrap(services.ErrTransient, "execute", "headroom", "probe free space", err)
	}
	if free < required {
		detail := fmt.Sprintf("free %d bytes, need %d", free, required)
		if auditErr := e.audit.Append(ctx, auditlog.ActionBatchRefused, "", "", detail, nil); auditErr != nil {
			return auditErr
		}
		return services.Wrap(services.ErrValidation, "execute", "headroom",
			"insufficient free space at review location: "+detail, nil)
	}
	return nil
}

func (e *Executor) processEntry(ctx context.Context, entry ledger.Record, summary *Summary) error {
	ctx = services.WithIdentityKey(ctx, entry.IdentityKey)
	logger := logging.WithContext(ctx, e.logger)

	if _, err := os.Stat(entry.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return e.skip(ctx, entry, summary, "source file no longer exists")
		}
		return e.fail(ctx, entry, summary,
			services.Wrap(services.ErrTransient, "execute", "stat source", entry.Path, err))
	}

	status := entry.Status
	justImported := false

	if entry.Decision == ledger.DecisionImportThenRemove && status == ledger.StatusPending {
		if e.importer == nil {
			return e.fail(ctx, entry, summary,
				services.Wrap(services.ErrConfiguration, "execute", "import", "no import command configured", nil))
		}
		importErr := e.importer.Import(ctx, entry.Path)
		if auditErr := e.audit.Append(ctx, auditlog.ActionImportAttempted, entry.IdentityKey, entry.Path, "", importErr); auditErr != nil {
			return auditErr
		}
		if importErr != nil {
			return e.fail(ctx, entry, summary, importErr)
		}
		if err := e.store.RecordStatus(ctx, entry.IdentityKey, ledger.StatusImported); err != nil {
			return err
		}
		status = ledger.StatusImported
		justImported = true
		summary.Imported++
		logger.Info("imported into catalog", logging.String(logging.FieldPath, entry.Path))
	}

	if status != ledger.StatusVerified {
		match, verifyErr := e.gate.Verify(ctx, entry, justImported)
		detail := string(match.Verdict)
		if auditErr := e.audit.Append(ctx, auditlog.ActionVerification, entry.IdentityKey, entry.Path, detail, verifyErr); auditErr != nil {
			return auditErr
		}
		if verifyErr != nil {
			return e.fail(ctx, entry, summary, verifyErr)
		}
		if err := e.store.RecordStatus(ctx, entry.IdentityKey, ledger.StatusVerified); err != nil {
			return err
		}
	}

	destDir := filepath.Join(e.cfg.Paths.ReviewDir, ReviewSubdirAlreadyInCatalog)
	if entry.Decision == ledger.DecisionImportThenRemove {
		destDir = filepath.Join(e.cfg.Paths.ReviewDir, ReviewSubdirNewlyImported)
	}

	target, moveErr := moveToReview(entry.Path, destDir)
	if auditErr := e.audit.Append(ctx, auditlog.ActionMove, entry.IdentityKey, entry.Path, target, moveErr); auditErr != nil {
		return auditErr
	}
	if moveErr != nil {
		return e.fail(ctx, entry, summary, moveErr)
	}
	if err := e.store.RecordMoved(ctx, entry.IdentityKey, target); err != nil {
		return err
	}

	summary.Moved++
	summary.ReclaimedBytes += entry.Size
	summary.Outcomes = append(summary.Outcomes, Outcome{
		Path:        entry.Path,
		IdentityKey: entry.IdentityKey,
		Decision:    entry.Decision,
		Status:      ledger.StatusMoved,
		MovedPath:   target,
	})
	logger.Info("moved out of source",
		logging.String(logging.FieldPath, entry.Path),
		logging.String("target", target))
	return nil
}

// fail marks the entry failed and keeps the run going, unless the failure
// itself is fatal (persistence) in which case it propagates.
func (e *Executor) fail(ctx context.Context, entry ledger.Record, summary *Summary, cause error) error {
	if services.IsFatal(cause) {
		return cause
	}
	if err := e.store.RecordFailure(ctx, entry.IdentityKey, cause.Error()); err != nil {
		return err
	}
	summary.Failed++
	summary.Outcomes = append(summary.Outcomes, Outcome{
		Path:        entry.Path,
		IdentityKey: entry.IdentityKey,
		Decision:    entry.Decision,
		Status:      ledger.StatusFailed,
		Reason:      cause.Error(),
	})
	logging.WithContext(ctx, e.logger).Warn("entry failed; not yet safe to remove",
		logging.String(logging.FieldPath, entry.Path),
		logging.Error(cause))
	return nil
}

func (e *Executor) skip(ctx context.Context, entry ledger.Record, summary *Summary, reason string) error {
	if err := e.store.RecordSkip(ctx, entry.IdentityKey, reason); err != nil {
		return err
	}
	summary.Skipped++
	summary.Outcomes = append(summary.Outcomes, Outcome{
		Path:        entry.Path,
		IdentityKey: entry.IdentityKey,
		Decision:    entry.Decision,
		Status:      ledger.StatusSkipped,
		Reason:      reason,
	})
	logging.WithContext(ctx, e.logger).Info("entry skipped",
		logging.String(logging.FieldPath, entry.Path),
		logging.String("reason", reason))
	return nil
}
