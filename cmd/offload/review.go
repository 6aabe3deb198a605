package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"offload/internal/review"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Decide what happens to each discovered file",
		RunE: func(cmd *cobra.Command, args []string) error {
			services, cleanup, err := ctx.openServices(false)
			if err != nil {
				return err
			}
			defer cleanup()

			reviewer := review.NewConsoleReviewer(cmd.InOrStdin(), cmd.OutOrStdout())
			session := review.NewSession(services.store, reviewer, services.audit, services.logger)
			summary, err := session.Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if summary.Paused {
				fmt.Fprintf(out, "paused: %d decided this session, %d remaining\n", summary.Decided, summary.Remaining)
				return nil
			}
			fmt.Fprintf(out, "review complete: %d decided this session, %d decided earlier\n", summary.Decided, summary.AlreadyDecided)
			return nil
		},
	}
}
