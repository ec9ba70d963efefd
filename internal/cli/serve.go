package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/example/lexicon/internal/bot"
	"github.com/example/lexicon/internal/scheduler"
)

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram moderation bot with scheduled reconciliation",
		Long: `Run the Telegram moderation bot.

Moderators whose chat is linked (lexicon actor set <id> --chat-id <chat>)
can review the queue with /queue and /entries. Reconciliation runs every
RECONCILE_INTERVAL and metrics are served on METRICS_ADDR when set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if app.Config.TelegramToken == "" {
					return WrapExitError(ExitCommandError, "cannot start bot", errors.New("TELEGRAM_BOT_TOKEN is not set"))
				}
				b, err := bot.NewFromToken(app.Config.TelegramToken, app.Engine, app.Actors, app.Log)
				if err != nil {
					return WrapExitError(ExitCommandError, "cannot start bot", err)
				}
				sched := scheduler.New(app.Engine, app.Config.ReconcileInterval, app.Log)
				return runWatch(ctx, app, sched, b.Start)
			})
		},
	}
}
