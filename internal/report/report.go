// Package report renders the CLI-facing tables: scan summaries grouped by
// extension, run outcomes, ledger counts, and preflight results.
package report

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"offload/internal/engine"
	"offload/internal/executor"
	"offload/internal/ledger"
	"offload/internal/matcher"
	"offload/internal/preflight"
)

var titler = cases.Title(language.English)

// ScanTable summarizes a discovery pass by extension: how many candidates,
// how many bytes, and each extension's share of the total.
func ScanTable(result engine.DiscoverResult) string {
	type group struct {
		count int
		bytes int64
	}
	groups := make(map[string]*group)
	var totalBytes int64
	for _, record := range result.Records {
		ext := strings.ToLower(filepath.Ext(record.Path))
		if ext == "" {
			ext = "(none)"
		}
		g := groups[ext]
		if g == nil {
			g = &group{}
			groups[ext] = g
		}
		g.count++
		g.bytes += record.Size
		totalBytes += record.Size
	}

	exts := make([]string, 0, len(groups))
	for ext := range groups {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	rows := make([][]string, 0, len(groups)+1)
	for _, ext := range exts {
		g := groups[ext]
		share := 0.0
		if totalBytes > 0 {
			share = float64(g.bytes) / float64(totalBytes) * 100
		}
		rows = append(rows, []string{
			ext,
			fmt.Sprintf("%d", g.count),
			humanize.IBytes(uint64(g.bytes)),
			fmt.Sprintf("%.1f%%", share),
		})
	}
	rows = append(rows, []string{
		"total",
		fmt.Sprintf("%d", len(result.Records)),
		humanize.IBytes(uint64(totalBytes)),
		"100.0%",
	})

	return renderTable(
		[]string{"Extension", "Files", "Size", "Share"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	)
}

// VerdictTable summarizes catalog verdicts from a discovery pass.
func VerdictTable(result engine.DiscoverResult) string {
	order := []matcher.Verdict{
		matcher.VerdictConfirmedPresent,
		matcher.VerdictLikelyPresent,
		matcher.VerdictAbsent,
		matcher.VerdictUnknown,
	}
	rows := make([][]string, 0, len(order)+1)
	for _, verdict := range order {
		rows = append(rows, []string{
			titler.String(strings.ReplaceAll(string(verdict), "-", " ")),
			fmt.Sprintf("%d", result.ByVerdict[verdict]),
		})
	}
	if result.Unverifiable > 0 {
		rows = append(rows, []string{"Could Not Verify", fmt.Sprintf("%d", result.Unverifiable)})
	}
	return renderTable(
		[]string{"Catalog Verdict", "Files"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	)
}

// RunTable summarizes one execution run, including reclaimed bytes.
func RunTable(summary executor.Summary) string {
	rows := [][]string{
		{"Moved", fmt.Sprintf("%d", summary.Moved)},
		{"Imported", fmt.Sprintf("%d", summary.Imported)},
		{"Failed", fmt.Sprintf("%d", summary.Failed)},
		{"Skipped", fmt.Sprintf("%d", summary.Skipped)},
		{"Batches", fmt.Sprintf("%d", summary.Batches)},
		{"Reclaimed", humanize.IBytes(uint64(summary.ReclaimedBytes))},
	}
	return renderTable(
		[]string{"Result", "Value"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	)
}

// OutcomeTable lists per-file outcomes. Failures always carry their reason:
// a failed file is not yet safe to remove, and the summary must say why.
func OutcomeTable(outcomes []executor.Outcome) string {
	if len(outcomes) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		detail := outcome.MovedPath
		if outcome.Reason != "" {
			detail = outcome.Reason
		}
		rows = append(rows, []string{
			filepath.Base(outcome.Path),
			string(outcome.Decision),
			titler.String(string(outcome.Status)),
			detail,
		})
	}
	return renderTable(
		[]string{"File", "Decision", "Result", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
	)
}

// LedgerTable summarizes ledger counts for the status command.
func LedgerTable(stats ledger.Stats) string {
	rows := [][]string{
		{"Tracked", fmt.Sprintf("%d", stats.Total)},
		{"Undecided", fmt.Sprintf("%d", stats.Undecided)},
	}
	for _, decision := range []ledger.Decision{
		ledger.DecisionRemove,
		ledger.DecisionImportThenRemove,
		ledger.DecisionKeep,
	} {
		label := titler.String(strings.ReplaceAll(string(decision), "_", " "))
		rows = append(rows, []string{label, fmt.Sprintf("%d", stats.ByChoice[decision])})
	}
	for _, status := range ledger.AllStatuses() {
		if count := stats.ByStatus[status]; count > 0 {
			rows = append(rows, []string{titler.String(string(status)), fmt.Sprintf("%d", count)})
		}
	}
	return renderTable(
		[]string{"Ledger", "Count"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	)
}

// PreflightTable renders environment check results.
func PreflightTable(results []preflight.Result) string {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		state := "FAIL"
		if result.Passed {
			state = "OK"
		}
		rows = append(rows, []string{result.Name, state, result.Detail})
	}
	return renderTable(
		[]string{"Check", "State", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft},
	)
}
