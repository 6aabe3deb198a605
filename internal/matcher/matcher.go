// Package matcher decides whether a source file is already preserved in the
// catalog. It only ever reads the catalog index; a lookup failure yields an
// unknown verdict, never a guess in either direction.
package matcher

import (
	"context"
	"log/slog"
	"path/filepath"

	"offload/internal/catalog"
	"offload/internal/inventory"
	"offload/internal/logging"
)

// Verdict is the matcher's confidence that a file is preserved in the catalog.
type Verdict string

const (
	// VerdictConfirmedPresent means the catalog holds the exact same bytes.
	// Only a content-digest comparison produces this.
	VerdictConfirmedPresent Verdict = "confirmed-present"
	// VerdictLikelyPresent means an entry matches by filename and size but
	// content equality was not established.
	VerdictLikelyPresent Verdict = "likely-present"
	// VerdictAbsent means no catalog entry matched.
	VerdictAbsent Verdict = "absent"
	// VerdictUnknown means the index could not answer. Unknown is never
	// treated as absent or present.
	VerdictUnknown Verdict = "unknown"
)

// Evidence names what a verdict rests on.
type Evidence string

const (
	EvidenceDigest   Evidence = "digest"
	EvidenceNameSize Evidence = "name+size"
	EvidenceNone     Evidence = "none"
)

// Match is one membership answer for one file.
type Match struct {
	Verdict  Verdict
	Evidence Evidence
	// Asset is the catalog entry behind a confirmed or likely verdict.
	Asset *catalog.Asset
}

// Preserved reports whether the verdict gives any indication the file is in
// the catalog.
func (m Match) Preserved() bool {
	return m.Verdict == VerdictConfirmedPresent || m.Verdict == VerdictLikelyPresent
}

// Matcher evaluates files against a catalog index.
type Matcher struct {
	index  catalog.Index
	logger *slog.Logger
}

// New builds a matcher over the given index.
func New(index catalog.Index, logger *slog.Logger) *Matcher {
	return &Matcher{
		index:  index,
		logger: logging.NewComponentLogger(logger, "matcher"),
	}
}

// Evaluate answers whether record's content is in the catalog. Digest
// equality wins; name+size only supports a likely verdict. Files without a
// digest can never reach confirmed.
func (m *Matcher) Evaluate(ctx context.Context, record inventory.FileRecord) Match {
	if record.Digest != "" {
		asset, err := m.index.LookupDigest(ctx, record.Digest)
		if err != nil {
			m.logger.Warn("catalog digest lookup failed",
				logging.String(logging.FieldPath, record.Path),
				logging.Error(err))
			return Match{Verdict: VerdictUnknown, Evidence: EvidenceNone}
		}
		if asset != nil {
			return Match{Verdict: VerdictConfirmedPresent, Evidence: EvidenceDigest, Asset: asset}
		}
	}

	asset, err := m.index.LookupNameSize(ctx, filepath.Base(record.Path), record.Size)
	if err != nil {
		m.logger.Warn("catalog name lookup failed",
			logging.String(logging.FieldPath, record.Path),
			logging.Error(err))
		return Match{Verdict: VerdictUnknown, Evidence: EvidenceNone}
	}
	if asset != nil {
		return Match{Verdict: VerdictLikelyPresent, Evidence: EvidenceNameSize, Asset: asset}
	}
	return Match{Verdict: VerdictAbsent, Evidence: EvidenceNone}
}
