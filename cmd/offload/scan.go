package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"offload/internal/engine"
	"offload/internal/report"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Discover candidate files, hash them, and match against the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			services, cleanup, err := ctx.openServices(true)
			if err != nil {
				return err
			}
			defer cleanup()

			eng := engine.New(services.cfg, services.store, services.matcher, services.audit, services.logger)
			result, err := eng.Discover(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, report.ScanTable(result))
			fmt.Fprintln(out, report.VerdictTable(result))
			if result.Stats.SkippedUnreadable > 0 {
				fmt.Fprintf(out, "skipped %d unreadable entries\n", result.Stats.SkippedUnreadable)
			}
			return nil
		},
	}
}
