package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"offload/internal/catalog"
	"offload/internal/executor"
	"offload/internal/report"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var batchSize int
	var yes bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute recorded decisions: import, verify, and move files in batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			services, cleanup, err := ctx.openServices(true)
			if err != nil {
				return err
			}
			defer cleanup()

			if batchSize > 0 {
				services.cfg.Execute.BatchSize = batchSize
			}

			if !yes {
				proceed, err := confirmRun(cmd, services)
				if err != nil {
					return err
				}
				if !proceed {
					fmt.Fprintln(cmd.OutOrStdout(), "run aborted")
					return nil
				}
			}

			var importer catalog.Importer
			if len(services.cfg.Catalog.ImportCommand) > 0 {
				importer, err = catalog.NewCommandImporter(services.cfg, services.logger)
				if err != nil {
					return err
				}
			}

			exec := executor.New(services.cfg, services.store, services.matcher, importer, services.audit, services.logger)
			summary, runErr := exec.Run(cmd.Context())

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, report.RunTable(summary))
			if table := report.OutcomeTable(summary.Outcomes); table != "" {
				fmt.Fprintln(out, table)
			}
			return runErr
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Override the configured batch size for this run")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// confirmRun shows what the run would touch and asks before moving anything.
// A run with no actionable entries needs no confirmation.
func confirmRun(cmd *cobra.Command, services *runtimeServices) (bool, error) {
	pending, err := services.store.PendingWork(cmd.Context())
	if err != nil {
		return false, err
	}
	if len(pending) == 0 {
		return true, nil
	}

	var totalBytes int64
	for _, entry := range pending {
		totalBytes += entry.Size
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "about to process %d files (%s)\n", len(pending), humanize.IBytes(uint64(totalBytes)))
	fmt.Fprint(out, "proceed? [y/N] ")

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
