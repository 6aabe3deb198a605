package review

import (
	"context"
	"strings"
	"testing"

	"offload/internal/ledger"
	"offload/internal/matcher"
)

func consoleRequest(verdict matcher.Verdict) Request {
	return Request{
		Record: ledger.Record{Path: "/src/a.mov", Size: 1024},
		Match:  matcher.Match{Verdict: verdict},
	}
}

func TestConsoleReadsChoice(t *testing.T) {
	var out strings.Builder
	reviewer := NewConsoleReviewer(strings.NewReader("k\n"), &out)

	choice, err := reviewer.Review(context.Background(), consoleRequest(matcher.VerdictAbsent))
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if choice != ChoiceKeep {
		t.Fatalf("expected keep, got %s", choice)
	}
	if !strings.Contains(out.String(), "/src/a.mov") {
		t.Fatal("card should name the file")
	}
}

func TestConsoleRejectsForbiddenThenAccepts(t *testing.T) {
	var out strings.Builder
	// Remove is refused for a likely verdict; the reviewer re-prompts.
	reviewer := NewConsoleReviewer(strings.NewReader("r\ni\n"), &out)

	choice, err := reviewer.Review(context.Background(), consoleRequest(matcher.VerdictLikelyPresent))
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if choice != ChoiceImportThenRemove {
		t.Fatalf("expected import_then_remove, got %s", choice)
	}
	if !strings.Contains(out.String(), "not available") {
		t.Fatal("expected a refusal message before the re-prompt")
	}
}

func TestConsoleRepromptsOnGarbage(t *testing.T) {
	var out strings.Builder
	reviewer := NewConsoleReviewer(strings.NewReader("x\n\nkeep\n"), &out)

	choice, err := reviewer.Review(context.Background(), consoleRequest(matcher.VerdictAbsent))
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if choice != ChoiceKeep {
		t.Fatalf("expected keep, got %s", choice)
	}
}

func TestConsoleEOFPauses(t *testing.T) {
	var out strings.Builder
	reviewer := NewConsoleReviewer(strings.NewReader(""), &out)

	choice, err := reviewer.Review(context.Background(), consoleRequest(matcher.VerdictAbsent))
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if choice != ChoicePause {
		t.Fatalf("closed input should pause, got %s", choice)
	}
}

func TestPromptOmitsRemoveUnlessConfirmed(t *testing.T) {
	reviewer := NewConsoleReviewer(strings.NewReader(""), &strings.Builder{})

	confirmed := reviewer.promptLine(consoleRequest(matcher.VerdictConfirmedPresent))
	if !strings.Contains(confirmed, "[r]emove") {
		t.Fatalf("confirmed prompt should offer remove: %q", confirmed)
	}

	likely := reviewer.promptLine(consoleRequest(matcher.VerdictLikelyPresent))
	if strings.Contains(likely, "[r]emove") {
		t.Fatalf("likely prompt must not offer remove: %q", likely)
	}
}
