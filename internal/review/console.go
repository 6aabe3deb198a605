package review

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"

	"offload/internal/matcher"
)

// ConsoleReviewer prompts on a terminal: one record card, one single-letter
// answer per file.
type ConsoleReviewer struct {
	in      *bufio.Reader
	out     io.Writer
	rounded bool
}

// NewConsoleReviewer builds a reviewer over the given streams. The rounded
// table style is only used when out is a terminal.
func NewConsoleReviewer(in io.Reader, out io.Writer) *ConsoleReviewer {
	rounded := false
	if f, ok := out.(*os.File); ok {
		rounded = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &ConsoleReviewer{
		in:      bufio.NewReader(in),
		out:     out,
		rounded: rounded,
	}
}

// Review renders the record card and reads answers until one names an
// allowed choice.
func (c *ConsoleReviewer) Review(ctx context.Context, request Request) (Choice, error) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, c.renderCard(request))

	prompt := c.promptLine(request)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprint(c.out, prompt)

		line, err := c.in.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				// Closed input ends the session the same way as an explicit
				// pause, with everything answered so far kept.
				return ChoicePause, nil
			}
			return "", fmt.Errorf("read choice: %w", err)
		}

		choice, ok := parseChoice(strings.TrimSpace(line))
		if !ok {
			fmt.Fprintln(c.out, "unrecognized answer")
			continue
		}
		if !request.Permits(choice) {
			fmt.Fprintf(c.out, "%s is not available for this file (verdict %s)\n",
				choice, request.Match.Verdict)
			continue
		}
		return choice, nil
	}
}

func (c *ConsoleReviewer) renderCard(request Request) string {
	record := request.Record

	tw := table.NewWriter()
	if c.rounded {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleLight)
	}

	tw.AppendRow(table.Row{"File", record.Path})
	tw.AppendRow(table.Row{"Size", humanize.IBytes(uint64(record.Size))})
	if !record.ModTime.IsZero() {
		tw.AppendRow(table.Row{"Modified", record.ModTime.Format("2006-01-02 15:04:05")})
	}
	if record.Digest != "" {
		tw.AppendRow(table.Row{"Digest", shortDigest(record.Digest)})
	}
	tw.AppendRow(table.Row{"Catalog", verdictLine(request.Match)})
	if asset := request.Match.Asset; asset != nil {
		tw.AppendRow(table.Row{"Matched", fmt.Sprintf("%s (%s)", asset.Filename, humanize.IBytes(uint64(asset.Size)))})
	}
	return tw.Render()
}

func (c *ConsoleReviewer) promptLine(request Request) string {
	labels := make([]string, 0, 4)
	for _, choice := range request.Allowed() {
		switch choice {
		case ChoiceRemove:
			labels = append(labels, "[r]emove")
		case ChoiceImportThenRemove:
			labels = append(labels, "[i]mport+remove")
		case ChoiceKeep:
			labels = append(labels, "[k]eep")
		case ChoicePause:
			labels = append(labels, "[p]ause")
		}
	}
	return strings.Join(labels, "  ") + " > "
}

func parseChoice(answer string) (Choice, bool) {
	switch strings.ToLower(answer) {
	case "r", "remove":
		return ChoiceRemove, true
	case "i", "import":
		return ChoiceImportThenRemove, true
	case "k", "keep":
		return ChoiceKeep, true
	case "p", "pause", "q", "quit":
		return ChoicePause, true
	}
	return "", false
}

func verdictLine(match matcher.Match) string {
	switch match.Verdict {
	case matcher.VerdictConfirmedPresent:
		return "confirmed present (content digest match)"
	case matcher.VerdictLikelyPresent:
		return "likely present (filename and size match only)"
	case matcher.VerdictAbsent:
		return "absent"
	default:
		return "unknown (catalog index could not answer)"
	}
}

func shortDigest(digest string) string {
	if len(digest) <= 16 {
		return digest
	}
	return digest[:16] + "…"
}
