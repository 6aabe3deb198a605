package ledger

import (
	"strings"
	"time"
)

// Decision is the operator's verdict for one file.
type Decision string

const (
	// DecisionRemove marks a file already preserved in the catalog.
	DecisionRemove Decision = "remove"
	// DecisionImportThenRemove marks a file that must be imported before it
	// may leave the source.
	DecisionImportThenRemove Decision = "import_then_remove"
	// DecisionKeep marks a file the operator wants left untouched.
	DecisionKeep Decision = "keep"
)

// Status is the execution lifecycle of a decided entry.
type Status string

const (
	StatusPending  Status = "pending"
	StatusImported Status = "imported"
	StatusVerified Status = "verified"
	StatusMoved    Status = "moved"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"
)

var allDecisions = []Decision{DecisionRemove, DecisionImportThenRemove, DecisionKeep}

var allStatuses = []Status{
	StatusPending,
	StatusImported,
	StatusVerified,
	StatusMoved,
	StatusFailed,
	StatusSkipped,
}

// chainRank orders the forward transition chain. Terminal failure states are
// handled separately: they are reachable from any non-moved status.
var chainRank = map[Status]int{
	StatusPending:  0,
	StatusImported: 1,
	StatusVerified: 2,
	StatusMoved:    3,
}

// ParseDecision converts a string into a known Decision.
func ParseDecision(value string) (Decision, bool) {
	normalized := Decision(strings.ToLower(strings.TrimSpace(value)))
	for _, decision := range allDecisions {
		if decision == normalized {
			return decision, true
		}
	}
	return "", false
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// CanTransition reports whether status may move from current to next.
// The chain only moves forward: pending → imported → verified → moved.
// failed and skipped are reachable from any state except moved, and no
// transition ever leaves moved.
func CanTransition(current, next Status) bool {
	if current == next {
		return true
	}
	if current == StatusMoved {
		return false
	}
	switch next {
	case StatusFailed, StatusSkipped:
		return current != StatusFailed && current != StatusSkipped
	}
	currentRank, ok := chainRank[current]
	if !ok {
		// failed/skipped only leave via RetryFailed, never via RecordStatus.
		return false
	}
	nextRank, ok := chainRank[next]
	if !ok {
		return false
	}
	return nextRank > currentRank
}

// IsTerminal reports whether a status ends the entry's chain for this run.
func (s Status) IsTerminal() bool {
	return s == StatusMoved || s == StatusFailed || s == StatusSkipped
}

// Record is one persisted ledger entry.
type Record struct {
	IdentityKey     string
	Path            string
	Size            int64
	ModTime         time.Time
	Digest          string
	Verdict         string
	VerdictEvidence string
	Decision        Decision
	Status          Status
	ErrorMessage    string
	MovedPath       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Decided reports whether the operator has recorded a decision.
func (r Record) Decided() bool {
	return r.Decision != ""
}

// Stats aggregates ledger counts for status output.
type Stats struct {
	Total     int
	Undecided int
	ByStatus  map[Status]int
	ByChoice  map[Decision]int
}
