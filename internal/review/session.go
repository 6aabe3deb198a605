package review

import (
	"context"
	"fmt"
	"log/slog"

	"offload/internal/auditlog"
	"offload/internal/ledger"
	"offload/internal/logging"
	"offload/internal/matcher"
	"offload/internal/services"
)

// Summary reports the outcome of one review session.
type Summary struct {
	AlreadyDecided int
	Decided        int
	Remaining      int
	Paused         bool
}

// Session walks the undecided ledger entries one at a time, recording each
// answer before presenting the next.
type Session struct {
	store    *ledger.Store
	reviewer Reviewer
	audit    *auditlog.Log
	logger   *slog.Logger
}

// NewSession builds a review session over the ledger store. Every recorded
// decision is appended to the audit log before the next prompt.
func NewSession(store *ledger.Store, reviewer Reviewer, audit *auditlog.Log, logger *slog.Logger) *Session {
	return &Session{
		store:    store,
		reviewer: reviewer,
		audit:    audit,
		logger:   logging.NewComponentLogger(logger, "review"),
	}
}

// Run presents every undecided entry. Decisions already in the ledger are
// loaded first and never re-asked. Each answer is persisted before the next
// prompt, so interrupting mid-session loses at most the answer in flight.
func (s *Session) Run(ctx context.Context) (Summary, error) {
	decisions, err := s.store.Decisions(ctx)
	if err != nil {
		return Summary{}, err
	}

	undecided, err := s.store.Undecided(ctx)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{AlreadyDecided: len(decisions)}

	for i, record := range undecided {
		if err := ctx.Err(); err != nil {
			summary.Remaining = len(undecided) - i
			return summary, err
		}

		request := Request{Record: record, Match: storedMatch(record)}
		choice, err := s.reviewer.Review(ctx, request)
		if err != nil {
			summary.Remaining = len(undecided) - i
			return summary, fmt.Errorf("review %s: %w", record.Path, err)
		}

		if choice == ChoicePause {
			summary.Paused = true
			summary.Remaining = len(undecided) - i
			s.logger.Info("review paused",
				logging.Int("decided", summary.Decided),
				logging.Int("remaining", summary.Remaining))
			return summary, nil
		}

		if !request.Permits(choice) {
			summary.Remaining = len(undecided) - i
			return summary, services.Wrap(services.ErrValidation, "review", "record decision",
				fmt.Sprintf("choice %s not permitted for verdict %s", choice, record.Verdict), nil)
		}

		decision, ok := choice.Decision()
		if !ok {
			summary.Remaining = len(undecided) - i
			return summary, services.Wrap(services.ErrValidation, "review", "record decision",
				fmt.Sprintf("unknown choice %q", choice), nil)
		}

		if err := s.store.RecordDecision(ctx, record.IdentityKey, decision); err != nil {
			summary.Remaining = len(undecided) - i
			return summary, err
		}
		if err := s.audit.Append(ctx, auditlog.ActionDecisionRecorded, record.IdentityKey, record.Path, string(decision), nil); err != nil {
			summary.Remaining = len(undecided) - i
			return summary, err
		}
		summary.Decided++

		s.logger.Debug("decision recorded",
			logging.String(logging.FieldIdentityKey, record.IdentityKey),
			logging.String("decision", string(decision)))
	}

	return summary, nil
}

// storedMatch rebuilds the match context from the verdict persisted at scan
// time, so review works without re-querying the catalog.
func storedMatch(record ledger.Record) matcher.Match {
	match := matcher.Match{Verdict: matcher.VerdictUnknown, Evidence: matcher.EvidenceNone}
	switch matcher.Verdict(record.Verdict) {
	case matcher.VerdictConfirmedPresent:
		match.Verdict = matcher.VerdictConfirmedPresent
	case matcher.VerdictLikelyPresent:
		match.Verdict = matcher.VerdictLikelyPresent
	case matcher.VerdictAbsent:
		match.Verdict = matcher.VerdictAbsent
	}
	switch matcher.Evidence(record.VerdictEvidence) {
	case matcher.EvidenceDigest:
		match.Evidence = matcher.EvidenceDigest
	case matcher.EvidenceNameSize:
		match.Evidence = matcher.EvidenceNameSize
	}
	return match
}
