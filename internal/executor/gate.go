package executor

import (
	"context"
	"fmt"

	"offload/internal/inventory"
	"offload/internal/ledger"
	"offload/internal/matcher"
	"offload/internal/services"
)

// Gate is the final membership check before a file leaves the source tree.
// It re-queries the catalog at execution time instead of trusting the
// verdict recorded at scan time: the catalog may have changed since.
type Gate struct {
	matcher *matcher.Matcher
}

// NewGate builds a verification gate over the matcher.
func NewGate(m *matcher.Matcher) *Gate {
	return &Gate{matcher: m}
}

// Verify confirms the entry's content is preserved in the catalog.
//
// A remove decision demands a confirmed-present verdict: the source copy is
// about to become unreachable, so nothing short of digest equality will do.
// After an import that just completed in this run, a likely-present verdict
// is accepted for that file only, because some catalogs do not expose
// imported content digests immediately.
func (g *Gate) Verify(ctx context.Context, entry ledger.Record, justImported bool) (matcher.Match, error) {
	record := inventory.FileRecord{
		Path:   entry.Path,
		Size:   entry.Size,
		Digest: entry.Digest,
	}

	match := g.matcher.Evaluate(ctx, record)
	switch match.Verdict {
	case matcher.VerdictConfirmedPresent:
		return match, nil
	case matcher.VerdictLikelyPresent:
		if justImported {
			return match, nil
		}
		return match, services.Wrap(services.ErrVerification, "execute", "verify",
			"catalog match is by name and size only; content equality not established", nil)
	case matcher.VerdictUnknown:
		return match, services.Wrap(services.ErrVerification, "execute", "verify",
			"catalog index could not answer; refusing to treat unknown as present", nil)
	default:
		return match, services.Wrap(services.ErrVerification, "execute", "verify",
			fmt.Sprintf("content not found in catalog (verdict %s)", match.Verdict), nil)
	}
}
