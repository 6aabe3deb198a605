package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"offload/internal/auditlog"
	"offload/internal/catalog"
	"offload/internal/config"
	"offload/internal/digest"
	"offload/internal/engine"
	"offload/internal/ledger"
	"offload/internal/logging"
	"offload/internal/matcher"
	"offload/internal/testsupport"
)

type fakeIndex struct {
	digests map[string]*catalog.Asset
}

func (f *fakeIndex) LookupDigest(_ context.Context, d string) (*catalog.Asset, error) {
	return f.digests[d], nil
}

func (f *fakeIndex) LookupNameSize(context.Context, string, int64) (*catalog.Asset, error) {
	return nil, nil
}

func (f *fakeIndex) Close() error { return nil }

func newEngine(t *testing.T, cfg *config.Config, store *ledger.Store, index catalog.Index) *engine.Engine {
	t.Helper()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	audit, err := auditlog.Open(cfg)
	if err != nil {
		t.Fatalf("open audit: %v", err)
	}
	t.Cleanup(func() { _ = audit.Close() })
	m := matcher.New(index, logging.NewNop())
	return engine.New(cfg, store, m, audit, logging.NewNop())
}

func TestDiscoverRecordsCandidates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.NewStore(t, cfg)

	inCatalog := filepath.Join(cfg.Paths.SourceDir, "known.mov")
	unknown := filepath.Join(cfg.Paths.SourceDir, "new.mov")
	testsupport.WriteSizedFile(t, inCatalog, 64, 'a')
	testsupport.WriteSizedFile(t, unknown, 64, 'b')

	knownDigest, err := digest.Compute(context.Background(), inCatalog)
	if err != nil {
		t.Fatalf("compute fixture digest: %v", err)
	}
	index := &fakeIndex{digests: map[string]*catalog.Asset{
		knownDigest: {Filename: "known.mov", Size: 64, Digest: knownDigest},
	}}

	result, err := newEngine(t, cfg, store, index).Discover(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	if result.Stats.Matched != 2 || len(result.Records) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.ByVerdict[matcher.VerdictConfirmedPresent] != 1 ||
		result.ByVerdict[matcher.VerdictAbsent] != 1 {
		t.Fatalf("unexpected verdicts: %v", result.ByVerdict)
	}

	record, err := store.Get(context.Background(), ledger.DigestKey(knownDigest))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record == nil {
		t.Fatal("known file should be recorded under its digest key")
	}
	if record.Verdict != string(matcher.VerdictConfirmedPresent) {
		t.Fatalf("unexpected verdict stored: %q", record.Verdict)
	}
}

func TestDiscoverIsIdempotentAcrossRescans(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.NewStore(t, cfg)

	path := filepath.Join(cfg.Paths.SourceDir, "a.mov")
	testsupport.WriteSizedFile(t, path, 64, 'a')
	index := &fakeIndex{digests: map[string]*catalog.Asset{}}

	eng := newEngine(t, cfg, store, index)
	if _, err := eng.Discover(context.Background()); err != nil {
		t.Fatalf("first discover: %v", err)
	}

	d, err := digest.Compute(context.Background(), path)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	key := ledger.DigestKey(d)
	if err := store.RecordDecision(context.Background(), key, ledger.DecisionKeep); err != nil {
		t.Fatalf("decide: %v", err)
	}

	// A rescan refreshes metadata but keeps the decision.
	if _, err := eng.Discover(context.Background()); err != nil {
		t.Fatalf("second discover: %v", err)
	}

	record, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Decision != ledger.DecisionKeep {
		t.Fatalf("rescan clobbered decision: %+v", record)
	}

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("rescan must not duplicate entries: %+v", stats)
	}
}

func TestDiscoverMigratesPathKeyToDigestKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.NewStore(t, cfg)

	path := filepath.Join(cfg.Paths.SourceDir, "a.mov")
	testsupport.WriteSizedFile(t, path, 64, 'a')

	// A decision recorded under the path fallback key, as after a run where
	// hashing failed.
	if err := store.UpsertScan(context.Background(), ledger.Record{
		IdentityKey: ledger.PathKey(path),
		Path:        path,
		Size:        64,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.RecordDecision(context.Background(), ledger.PathKey(path), ledger.DecisionKeep); err != nil {
		t.Fatalf("decide: %v", err)
	}

	index := &fakeIndex{digests: map[string]*catalog.Asset{}}
	if _, err := newEngine(t, cfg, store, index).Discover(context.Background()); err != nil {
		t.Fatalf("discover: %v", err)
	}

	d, err := digest.Compute(context.Background(), path)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}

	if old, err := store.Get(context.Background(), ledger.PathKey(path)); err != nil || old != nil {
		t.Fatalf("path key should be migrated away, got %+v err %v", old, err)
	}
	record, err := store.Get(context.Background(), ledger.DigestKey(d))
	if err != nil {
		t.Fatalf("get digest key: %v", err)
	}
	if record == nil || record.Decision != ledger.DecisionKeep {
		t.Fatalf("decision should survive key migration: %+v", record)
	}
}

func TestDiscoverCountsUnverifiable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.NewStore(t, cfg)

	readable := filepath.Join(cfg.Paths.SourceDir, "ok.mov")
	unreadable := filepath.Join(cfg.Paths.SourceDir, "secret.mov")
	testsupport.WriteSizedFile(t, readable, 64, 'a')
	testsupport.WriteSizedFile(t, unreadable, 64, 'b')
	if err := os.Chmod(unreadable, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(unreadable, 0o644) })
	if os.Geteuid() == 0 {
		t.Skip("permission checks are bypassed for root")
	}

	index := &fakeIndex{digests: map[string]*catalog.Asset{}}
	result, err := newEngine(t, cfg, store, index).Discover(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if result.Unverifiable != 1 {
		t.Fatalf("expected 1 unverifiable file, got %d", result.Unverifiable)
	}

	// The unreadable file is still tracked, under its path fallback key.
	record, err := store.Get(context.Background(), ledger.PathKey(unreadable))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record == nil {
		t.Fatal("unverifiable file must still be tracked")
	}
}
