package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"offload/internal/ledger"
	"offload/internal/preflight"
	"offload/internal/report"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the environment and summarize the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			results := preflight.RunAll(cmd.Context(), cfg)
			fmt.Fprintln(out, report.PreflightTable(results))

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			store, err := ledger.Open(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, report.LedgerTable(stats))

			for _, result := range results {
				if !result.Passed {
					return fmt.Errorf("preflight check failed: %s", result.Name)
				}
			}
			return nil
		},
	}
}
