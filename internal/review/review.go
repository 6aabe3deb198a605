// Package review drives the operator decision pass: presenting each
// undecided file with its catalog verdict and recording the chosen action
// durably before moving on. Interrupting a session never loses recorded
// decisions.
package review

import (
	"context"

	"offload/internal/ledger"
	"offload/internal/matcher"
)

// Choice is one operator answer for one file.
type Choice string

const (
	// ChoiceRemove relocates the file out of the source; it must already be
	// preserved in the catalog.
	ChoiceRemove Choice = "remove"
	// ChoiceImportThenRemove imports the file into the catalog first, then
	// relocates it.
	ChoiceImportThenRemove Choice = "import_then_remove"
	// ChoiceKeep leaves the file untouched.
	ChoiceKeep Choice = "keep"
	// ChoicePause stops the session cleanly; decisions so far stay recorded.
	ChoicePause Choice = "pause"
)

// Request is one file presented for review.
type Request struct {
	Record ledger.Record
	Match  matcher.Match
}

// Allowed returns the choices the verdict permits. Removing a file is only
// offered when its presence in the catalog is confirmed; a likely or unknown
// verdict is not enough to risk the only copy.
func (r Request) Allowed() []Choice {
	choices := make([]Choice, 0, 4)
	if r.Match.Verdict == matcher.VerdictConfirmedPresent {
		choices = append(choices, ChoiceRemove)
	}
	choices = append(choices, ChoiceImportThenRemove, ChoiceKeep, ChoicePause)
	return choices
}

// Permits reports whether choice is allowed for this request.
func (r Request) Permits(choice Choice) bool {
	for _, allowed := range r.Allowed() {
		if allowed == choice {
			return true
		}
	}
	return false
}

// Decision maps an actionable choice to its ledger decision. Pause has no
// ledger representation.
func (c Choice) Decision() (ledger.Decision, bool) {
	switch c {
	case ChoiceRemove:
		return ledger.DecisionRemove, true
	case ChoiceImportThenRemove:
		return ledger.DecisionImportThenRemove, true
	case ChoiceKeep:
		return ledger.DecisionKeep, true
	}
	return "", false
}

// Reviewer answers review requests. Implementations block until the operator
// (or a scripted stand-in) responds.
type Reviewer interface {
	Review(ctx context.Context, request Request) (Choice, error)
}
