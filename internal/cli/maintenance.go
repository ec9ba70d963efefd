package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/lexicon/internal/database"
	"github.com/example/lexicon/internal/excel"
	"github.com/example/lexicon/internal/metrics"
	"github.com/example/lexicon/internal/moderation"
	"github.com/example/lexicon/internal/scheduler"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if err := database.Migrate(app.DB); err != nil {
					return WrapExitError(ExitCommandError, "migration failed", err)
				}
				return opts.printer(cmd).print(map[string]string{"status": "ok"}, func(w io.Writer) {
					fmt.Fprintf(w, "Schema up to date (%s)\n", app.Config.DBDriver)
				})
			})
		},
	}
}

// NewImportCommand creates the import command.
func NewImportCommand(opts *RootOptions) *cobra.Command {
	cfg := excel.DefaultImportConfig()

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import entries from an Excel or CSV file",
		Long: `Import entries from an Excel or CSV file.

Columns default to: headword, language, part of speech, definition,
examples (';' separated), translations (lang:text, ';' separated),
category, pronunciation. Consecutive rows with the same headword become
meanings of one entry. Existing entries are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.FilePath = args[0]
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				actor, err := app.ResolveActor(ctx, opts.Actor)
				if err != nil {
					return err
				}
				result, err := excel.NewImporter(app.Engine, actor, app.Metrics).
					WithCategories(app.Categories).
					Import(ctx, cfg)
				if err != nil {
					return WrapExitError(ExitCommandError, "import failed", err)
				}
				return opts.printer(cmd).print(result, func(w io.Writer) {
					fmt.Fprintf(w, "Processed %d entries: %d created (%d awaiting moderation), %d skipped\n",
						result.TotalProcessed, result.Created, result.Pending, result.Skipped)
					for _, e := range result.Errors {
						fmt.Fprintf(w, "  %s\n", e)
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&cfg.SheetName, "sheet", cfg.SheetName, "sheet to read from Excel files")
	cmd.Flags().IntVar(&cfg.StartRow, "start-row", cfg.StartRow, "first data row (1-based)")
	cmd.Flags().StringVar(&cfg.DefaultLanguage, "language", "", "language for rows without one")
	cmd.Flags().StringVar(&cfg.HeadwordColumn, "headword-col", cfg.HeadwordColumn, "headword column")
	cmd.Flags().StringVar(&cfg.DefinitionColumn, "definition-col", cfg.DefinitionColumn, "definition column")
	return cmd
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair records left inconsistent by interrupted transitions",
		Long: `Repair records left inconsistent by interrupted transitions.

With --watch the repair runs every RECONCILE_INTERVAL until interrupted,
and Prometheus metrics are served on METRICS_ADDR when it is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				sched := scheduler.New(app.Engine, app.Config.ReconcileInterval, app.Log)
				if !watch {
					report, err := sched.RunOnce(ctx)
					if err != nil {
						return err
					}
					return opts.printer(cmd).print(report, func(w io.Writer) { writeReport(w, report) })
				}
				return runWatch(ctx, app, sched, nil)
			})
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "keep running on a schedule")
	return cmd
}

// runWatch runs the scheduler and the metrics endpoint until interrupted.
// run, when set, blocks alongside them and its failure ends the watch.
func runWatch(ctx context.Context, app *App, sched *scheduler.Scheduler, run func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	var srv *http.Server
	if addr := app.Config.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(app.Registry))
		srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			app.Log.Info().Str("addr", addr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.Log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	var runErr error
	if run != nil {
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			runErr = err
		}
	} else {
		<-ctx.Done()
	}
	app.Log.Info().Msg("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Log.Warn().Err(err).Msg("metrics server shutdown")
		}
	}
	return runErr
}

func writeReport(w io.Writer, report moderation.ReconcileReport) {
	fmt.Fprintf(w, "Found %d anomalies\n", report.Found)
	kinds := make([]string, 0, len(report.Repaired))
	for kind := range report.Repaired {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(w, "  repaired %-18s %d\n", kind, report.Repaired[kind])
	}
	for _, a := range report.Skipped {
		fmt.Fprintf(w, "  skipped  %-18s entry=%s revision=%s\n", a.Kind, a.EntryID, a.RevisionID)
	}
}
