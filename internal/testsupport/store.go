package testsupport

import (
	"testing"

	"offload/internal/config"
	"offload/internal/ledger"
	"offload/internal/logging"
)

// NewStore opens a ledger store against the test config's log directory and
// closes it when the test finishes.
func NewStore(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("open ledger store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
