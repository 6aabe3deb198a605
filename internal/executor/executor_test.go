package executor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"offload/internal/auditlog"
	"offload/internal/catalog"
	"offload/internal/config"
	"offload/internal/executor"
	"offload/internal/ledger"
	"offload/internal/logging"
	"offload/internal/matcher"
	"offload/internal/services"
	"offload/internal/testsupport"
)

// fakeIndex is a mutable in-memory catalog index.
type fakeIndex struct {
	digests   map[string]*catalog.Asset
	nameSizes map[string]*catalog.Asset
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		digests:   make(map[string]*catalog.Asset),
		nameSizes: make(map[string]*catalog.Asset),
	}
}

func (f *fakeIndex) addDigest(asset catalog.Asset) {
	f.digests[asset.Digest] = &asset
	f.nameSizes[asset.Filename] = &asset
}

func (f *fakeIndex) addNameOnly(asset catalog.Asset) {
	f.nameSizes[asset.Filename] = &asset
}

func (f *fakeIndex) LookupDigest(_ context.Context, digest string) (*catalog.Asset, error) {
	return f.digests[digest], nil
}

func (f *fakeIndex) LookupNameSize(_ context.Context, name string, size int64) (*catalog.Asset, error) {
	asset := f.nameSizes[name]
	if asset == nil || asset.Size != size {
		return nil, nil
	}
	return asset, nil
}

func (f *fakeIndex) Close() error { return nil }

// fakeImporter records import calls and mimics a catalog that indexes new
// files by name and size only.
type fakeImporter struct {
	index *fakeIndex
	calls []string
	err   error
}

func (f *fakeImporter) Import(_ context.Context, path string) error {
	f.calls = append(f.calls, path)
	if f.err != nil {
		return f.err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	f.index.addNameOnly(catalog.Asset{Filename: filepath.Base(path), Size: info.Size()})
	return nil
}

type fixture struct {
	cfg      *config.Config
	store    *ledger.Store
	index    *fakeIndex
	importer *fakeImporter
	audit    *auditlog.Log
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	store := testsupport.NewStore(t, cfg)

	audit, err := auditlog.Open(cfg)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	t.Cleanup(func() { _ = audit.Close() })

	index := newFakeIndex()
	return &fixture{
		cfg:      cfg,
		store:    store,
		index:    index,
		importer: &fakeImporter{index: index},
		audit:    audit,
	}
}

func (f *fixture) executor(t *testing.T, opts ...executor.Option) *executor.Executor {
	t.Helper()
	m := matcher.New(f.index, logging.NewNop())
	return executor.New(f.cfg, f.store, m, f.importer, f.audit, logging.NewNop(), opts...)
}

// seed writes a real source file, records it in the ledger, and applies a
// decision.
func (f *fixture) seed(t *testing.T, name, digest string, size int, decision ledger.Decision) ledger.Record {
	t.Helper()

	path := filepath.Join(f.cfg.Paths.SourceDir, name)
	testsupport.WriteSizedFile(t, path, int64(size), 'x')

	key := ledger.KeyFor(path, digest)
	record := ledger.Record{
		IdentityKey: key,
		Path:        path,
		Size:        int64(size),
		ModTime:     time.Now(),
		Digest:      digest,
	}
	ctx := context.Background()
	if err := f.store.UpsertScan(ctx, record); err != nil {
		t.Fatalf("seed upsert %s: %v", name, err)
	}
	if decision != "" {
		if err := f.store.RecordDecision(ctx, key, decision); err != nil {
			t.Fatalf("seed decide %s: %v", name, err)
		}
	}
	record.Decision = decision
	return record
}

func TestRunMovesConfirmedRemovals(t *testing.T) {
	f := newFixture(t)
	entry := f.seed(t, "a.mov", "d-a", 100, ledger.DecisionRemove)
	f.index.addDigest(catalog.Asset{Filename: "a.mov", Size: 100, Digest: "d-a"})

	summary, err := f.executor(t).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Moved != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.ReclaimedBytes != 100 {
		t.Fatalf("expected 100 reclaimed bytes, got %d", summary.ReclaimedBytes)
	}

	if _, err := os.Stat(entry.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("source file should be gone")
	}
	moved := filepath.Join(f.cfg.Paths.ReviewDir, executor.ReviewSubdirAlreadyInCatalog, "a.mov")
	if _, err := os.Stat(moved); err != nil {
		t.Fatalf("moved file missing: %v", err)
	}

	record, err := f.store.Get(context.Background(), entry.IdentityKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Status != ledger.StatusMoved || record.MovedPath != moved {
		t.Fatalf("unexpected ledger state: %+v", record)
	}
}

func TestRunImportsThenMoves(t *testing.T) {
	f := newFixture(t)
	entry := f.seed(t, "b.mov", "d-b", 50, ledger.DecisionImportThenRemove)

	summary, err := f.executor(t).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Imported != 1 || summary.Moved != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(f.importer.calls) != 1 || f.importer.calls[0] != entry.Path {
		t.Fatalf("unexpected import calls: %v", f.importer.calls)
	}

	moved := filepath.Join(f.cfg.Paths.ReviewDir, executor.ReviewSubdirNewlyImported, "b.mov")
	if _, err := os.Stat(moved); err != nil {
		t.Fatalf("moved file missing from newly_imported: %v", err)
	}
}

func TestRunIgnoresKeepAndUndecided(t *testing.T) {
	f := newFixture(t)
	kept := f.seed(t, "keep.mov", "d-k", 10, ledger.DecisionKeep)
	undecided := f.seed(t, "undecided.mov", "d-u", 10, "")

	summary, err := f.executor(t).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Moved != 0 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Fatalf("nothing should be touched: %+v", summary)
	}
	for _, path := range []string{kept.Path, undecided.Path} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("file %s should be untouched: %v", path, err)
		}
	}
}

func TestGateRefusesNameSizeForRemove(t *testing.T) {
	f := newFixture(t)
	entry := f.seed(t, "c.mov", "", 30, ledger.DecisionRemove)
	// Catalog only matches by name and size; content equality unknown.
	f.index.addNameOnly(catalog.Asset{Filename: "c.mov", Size: 30})

	summary, err := f.executor(t).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Failed != 1 || summary.Moved != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	// The file never leaves the source on a refused gate.
	if _, err := os.Stat(entry.Path); err != nil {
		t.Fatalf("source must remain after gate refusal: %v", err)
	}
	record, err := f.store.Get(context.Background(), entry.IdentityKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Status != ledger.StatusFailed {
		t.Fatalf("expected failed status, got %s", record.Status)
	}
}

func TestMissingSourceIsSkipped(t *testing.T) {
	f := newFixture(t)
	entry := f.seed(t, "gone.mov", "d-g", 10, ledger.DecisionRemove)
	f.index.addDigest(catalog.Asset{Filename: "gone.mov", Size: 10, Digest: "d-g"})
	if err := os.Remove(entry.Path); err != nil {
		t.Fatalf("remove source: %v", err)
	}

	summary, err := f.executor(t).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Skipped != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestHeadroomAbortsBeforeBatch(t *testing.T) {
	f := newFixture(t)
	entry := f.seed(t, "big.mov", "d-big", 1000, ledger.DecisionRemove)
	f.index.addDigest(catalog.Asset{Filename: "big.mov", Size: 1000, Digest: "d-big"})

	exec := f.executor(t, executor.WithFreeSpaceProbe(func(string) (int64, error) {
		return 999, nil
	}))

	_, err := exec.Run(context.Background())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected headroom validation error, got %v", err)
	}

	// Nothing in the refused batch is touched.
	if _, statErr := os.Stat(entry.Path); statErr != nil {
		t.Fatalf("source must remain: %v", statErr)
	}
	record, err := f.store.Get(context.Background(), entry.IdentityKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Status == ledger.StatusMoved {
		t.Fatal("entry must not be moved when headroom check fails")
	}
}

func TestHeadroomCountsMargin(t *testing.T) {
	f := newFixture(t)
	f.cfg.Execute.FreeSpaceMarginMB = 1
	f.seed(t, "m.mov", "d-m", 100, ledger.DecisionRemove)
	f.index.addDigest(catalog.Asset{Filename: "m.mov", Size: 100, Digest: "d-m"})

	// Free space covers the batch but not batch+margin.
	exec := f.executor(t, executor.WithFreeSpaceProbe(func(string) (int64, error) {
		return 200, nil
	}))
	if _, err := exec.Run(context.Background()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected margin to be enforced, got %v", err)
	}
}

func TestRerunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a.mov", "d-a", 100, ledger.DecisionRemove)
	f.index.addDigest(catalog.Asset{Filename: "a.mov", Size: 100, Digest: "d-a"})

	if _, err := f.executor(t).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, err := f.executor(t).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Moved != 0 || summary.Skipped != 0 || summary.Failed != 0 {
		t.Fatalf("second run must be a no-op: %+v", summary)
	}
}

func TestFailedEntriesRetryFromChainStart(t *testing.T) {
	f := newFixture(t)
	entry := f.seed(t, "retry.mov", "d-r", 40, ledger.DecisionRemove)

	// First run fails at the gate: nothing in the catalog.
	summary, err := f.executor(t).Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("expected one failure, got %+v", summary)
	}

	// The catalog catches up; a later run re-selects the failed entry.
	f.index.addDigest(catalog.Asset{Filename: "retry.mov", Size: 40, Digest: "d-r"})
	summary, err = f.executor(t).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Moved != 1 {
		t.Fatalf("failed entry should be retried and moved: %+v", summary)
	}

	record, err := f.store.Get(context.Background(), entry.IdentityKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Status != ledger.StatusMoved {
		t.Fatalf("expected moved after retry, got %s", record.Status)
	}
}

func TestImportFailureDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t)
	f.importer.err = errors.New("catalog rejected file")
	bad := f.seed(t, "bad.mov", "d-bad", 10, ledger.DecisionImportThenRemove)
	f.seed(t, "ok.mov", "d-ok", 10, ledger.DecisionRemove)
	f.index.addDigest(catalog.Asset{Filename: "ok.mov", Size: 10, Digest: "d-ok"})

	summary, err := f.executor(t).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Failed != 1 || summary.Moved != 1 {
		t.Fatalf("one failure, one move expected: %+v", summary)
	}

	record, err := f.store.Get(context.Background(), bad.IdentityKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Status != ledger.StatusFailed {
		t.Fatalf("expected failed import entry, got %s", record.Status)
	}
}

func TestDestinationCollisionGetsNumberedName(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "dup.mov", "d-dup", 10, ledger.DecisionRemove)
	f.index.addDigest(catalog.Asset{Filename: "dup.mov", Size: 10, Digest: "d-dup"})

	destDir := filepath.Join(f.cfg.Paths.ReviewDir, executor.ReviewSubdirAlreadyInCatalog)
	testsupport.WriteFile(t, filepath.Join(destDir, "dup.mov"), []byte("occupied"))

	summary, err := f.executor(t).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Moved != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if _, err := os.Stat(filepath.Join(destDir, "dup-1.mov")); err != nil {
		t.Fatalf("expected numbered collision name: %v", err)
	}
	occupied, err := os.ReadFile(filepath.Join(destDir, "dup.mov"))
	if err != nil || string(occupied) != "occupied" {
		t.Fatalf("existing destination file must be untouched: %q %v", occupied, err)
	}
}

func TestRunLockIsExclusive(t *testing.T) {
	f := newFixture(t)

	lock, err := executor.AcquireRunLock(f.cfg.LockPath())
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	defer lock.Release()

	if _, err := f.executor(t).Run(context.Background()); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected run to refuse while lock is held, got %v", err)
	}
}

func TestBatchPartitioning(t *testing.T) {
	f := newFixture(t)
	f.cfg.Execute.BatchSize = 2
	for _, name := range []string{"p1.mov", "p2.mov", "p3.mov", "p4.mov", "p5.mov"} {
		digest := "d-" + name
		f.seed(t, name, digest, 10, ledger.DecisionRemove)
		f.index.addDigest(catalog.Asset{Filename: name, Size: 10, Digest: digest})
	}

	summary, err := f.executor(t).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Batches != 3 || summary.Moved != 5 {
		t.Fatalf("expected 3 batches of 5 moves, got %+v", summary)
	}
}
