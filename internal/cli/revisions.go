package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/lexicon/internal/moderation"
)

// NewApproveCommand creates the approve command.
func NewApproveCommand(opts *RootOptions) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "approve <entry-id> <revision-id>",
		Short: "Apply a pending revision to its entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				reviewer, err := app.ResolveActor(ctx, opts.Actor)
				if err != nil {
					return err
				}
				res, err := app.Engine.ApproveRevision(ctx, args[0], args[1], reviewer, notes)
				if err != nil {
					return err
				}
				return printReview(opts.printer(cmd), res)
			})
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "review notes")
	return cmd
}

// NewRejectCommand creates the reject command.
func NewRejectCommand(opts *RootOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <entry-id> <revision-id>",
		Short: "Reject a pending revision",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				reviewer, err := app.ResolveActor(ctx, opts.Actor)
				if err != nil {
					return err
				}
				res, err := app.Engine.RejectRevision(ctx, args[0], args[1], reviewer, reason)
				if err != nil {
					return err
				}
				return printReview(opts.printer(cmd), res)
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason shown to the submitter (required)")
	return cmd
}

func printReview(p printer, res *moderation.ReviewResult) error {
	return p.print(res, func(w io.Writer) {
		fmt.Fprintf(w, "Revision %s %s\n", res.Revision.ID, res.Revision.Status)
		if res.Entry != nil {
			writeEntry(w, *res.Entry)
		}
	})
}
