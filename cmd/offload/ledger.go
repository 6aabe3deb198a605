package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"offload/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and maintain the decision ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	ledgerCmd.AddCommand(newLedgerListCommand(ctx))
	ledgerCmd.AddCommand(newLedgerRetryCommand(ctx))
	ledgerCmd.AddCommand(newLedgerClearFailedCommand(ctx))
	return ledgerCmd
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			services, cleanup, err := ctx.openServices(false)
			if err != nil {
				return err
			}
			defer cleanup()

			var statuses []ledger.Status
			if trimmed := strings.TrimSpace(statusFlag); trimmed != "" {
				status, ok := ledger.ParseStatus(trimmed)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFlag)
				}
				statuses = append(statuses, status)
			}

			entries, err := services.store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "ledger is empty")
				return nil
			}
			for _, entry := range entries {
				decision := string(entry.Decision)
				if decision == "" {
					decision = "undecided"
				}
				line := fmt.Sprintf("%-10s %-20s %8s  %s",
					entry.Status, decision, humanize.IBytes(uint64(entry.Size)), entry.Path)
				if entry.ErrorMessage != "" {
					line += "  (" + entry.ErrorMessage + ")"
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Only list entries with this status")
	return cmd
}

func newLedgerClearFailedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-failed",
		Short: "Drop failed entries from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			services, cleanup, err := ctx.openServices(false)
			if err != nil {
				return err
			}
			defer cleanup()

			cleared, err := services.store.ClearFailed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d failed entries\n", cleared)
			return nil
		},
	}
}

func newLedgerRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [identity-key ...]",
		Short: "Reset failed entries so the next run retries them",
		RunE: func(cmd *cobra.Command, args []string) error {
			services, cleanup, err := ctx.openServices(false)
			if err != nil {
				return err
			}
			defer cleanup()

			reset, err := services.store.RetryFailed(cmd.Context(), args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %d failed entries to pending\n", reset)
			return nil
		},
	}
}
