package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/lexicon/internal/excel"
	"github.com/example/lexicon/internal/moderation"
	"github.com/example/lexicon/pkg/models"
)

// NewQueueCommand creates the queue command and its subcommands.
func NewQueueCommand(opts *RootOptions) *cobra.Command {
	var req models.PageRequest

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the moderation queue",
	}
	cmd.PersistentFlags().IntVar(&req.Page, "page", 1, "page number")
	cmd.PersistentFlags().IntVar(&req.Limit, "limit", models.DefaultPageLimit, "items per page")

	cmd.AddCommand(&cobra.Command{
		Use:   "entries",
		Short: "List new entries awaiting moderation, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				page, err := app.Engine.ListPendingEntries(ctx, req)
				if err != nil {
					return err
				}
				return opts.printer(cmd).print(page, func(w io.Writer) {
					writePageHeader(w, "pending entries", page.Page, page.TotalPages, page.Total)
					for _, e := range page.Items {
						fmt.Fprintf(w, "  %s  %s [%s] by %s\n", e.ID, e.Headword, e.LanguageID, e.CreatedBy)
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "revisions",
		Short: "List pending revisions by priority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				page, err := app.Engine.ListPendingRevisions(ctx, req)
				if err != nil {
					return err
				}
				return opts.printer(cmd).print(page, func(w io.Writer) {
					writePageHeader(w, "pending revisions", page.Page, page.TotalPages, page.Total)
					for _, item := range page.Items {
						headword := "<missing>"
						if item.Entry != nil {
							headword = item.Entry.Headword
						}
						fmt.Fprintf(w, "  [%-6s] %s on %s (%s)", item.Priority, item.Revision.ID, headword, item.Revision.EntryID)
						if item.Anomaly != nil {
							fmt.Fprintf(w, " !%s", item.Anomaly.Kind)
						}
						fmt.Fprintln(w)
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "anomalies",
		Short: "List records left inconsistent by interrupted transitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				anomalies, err := app.Engine.Queue().Anomalies(ctx)
				if err != nil {
					return err
				}
				if anomalies == nil {
					anomalies = []moderation.Anomaly{}
				}
				return opts.printer(cmd).print(anomalies, func(w io.Writer) {
					if len(anomalies) == 0 {
						fmt.Fprintln(w, "No anomalies")
						return
					}
					for _, a := range anomalies {
						fmt.Fprintf(w, "  %-18s entry=%s revision=%s: %s\n", a.Kind, a.EntryID, a.RevisionID, a.Detail)
					}
				})
			})
		},
	})

	return cmd
}

func writePageHeader(w io.Writer, what string, page, pages, total int) {
	fmt.Fprintf(w, "%d %s (page %d of %d)\n", total, what, page, pages)
}

// NewExportQueueCommand creates the export-queue command.
func NewExportQueueCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export-queue <file.xlsx>",
		Short: "Write the whole moderation queue to a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				revisions, err := collect(func(req models.PageRequest) (models.Page[moderation.RevisionItem], error) {
					return app.Engine.ListPendingRevisions(ctx, req)
				})
				if err != nil {
					return err
				}
				entries, err := collect(func(req models.PageRequest) (models.Page[models.Entry], error) {
					return app.Engine.ListPendingEntries(ctx, req)
				})
				if err != nil {
					return err
				}
				if err := excel.ExportQueue(args[0], revisions, entries); err != nil {
					return WrapExitError(ExitCommandError, "export failed", err)
				}
				summary := map[string]int{"revisions": len(revisions), "entries": len(entries)}
				return opts.printer(cmd).print(summary, func(w io.Writer) {
					fmt.Fprintf(w, "Exported %d revisions and %d entries to %s\n", len(revisions), len(entries), args[0])
				})
			})
		},
	}
}

// collect reads every page of a listing.
func collect[T any](list func(models.PageRequest) (models.Page[T], error)) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		p, err := list(models.PageRequest{Page: page, Limit: models.MaxPageLimit})
		if err != nil {
			return nil, err
		}
		all = append(all, p.Items...)
		if page >= p.TotalPages {
			return all, nil
		}
	}
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show entry and revision counts and the most active reviewers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				stats, err := app.Statistics.Overview(ctx, top)
				if err != nil {
					return err
				}
				return opts.printer(cmd).print(stats, func(w io.Writer) {
					fmt.Fprintln(w, "Entries:")
					for _, s := range []models.EntryStatus{models.EntryApproved, models.EntryPending, models.EntryPendingRevision, models.EntryRejected} {
						fmt.Fprintf(w, "  %-18s %d\n", s, stats.Entries[s])
					}
					fmt.Fprintln(w, "Revisions:")
					for _, s := range []models.RevisionStatus{models.RevisionPending, models.RevisionApproved, models.RevisionRejected} {
						fmt.Fprintf(w, "  %-18s %d\n", s, stats.Revisions[s])
					}
					if len(stats.Reviewers) > 0 {
						fmt.Fprintln(w, "Top reviewers:")
						for _, r := range stats.Reviewers {
							fmt.Fprintf(w, "  %-18s %d approved, %d rejected\n", r.ReviewerID, r.Approved, r.Rejected)
						}
					}
				})
			})
		},
	}

	cmd.Flags().IntVar(&top, "top", 5, "number of reviewers to show")
	return cmd
}
