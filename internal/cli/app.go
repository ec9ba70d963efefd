package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/example/lexicon/internal/config"
	"github.com/example/lexicon/internal/database"
	"github.com/example/lexicon/internal/logger"
	"github.com/example/lexicon/internal/metrics"
	"github.com/example/lexicon/internal/moderation"
	"github.com/example/lexicon/internal/notify"
	"github.com/example/lexicon/pkg/models"
)

// App holds the wired components shared by the commands
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	DB       *sqlx.DB
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Engine   *moderation.Engine

	Actors     *database.ActorRepository
	Activity   *database.ActivityRepository
	Dependents *database.DependencyRepository
	Categories *database.CategoryRepository
	Statistics *database.StatisticsRepository
}

// NewApp connects to the database and wires the engine with its
// collaborators. logOut receives the structured log.
func NewApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*App, error) {
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Output: logOut})

	db, err := database.Connect(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	app := &App{
		Config:     cfg,
		Log:        log,
		DB:         db,
		Registry:   prometheus.NewRegistry(),
		Actors:     database.NewActorRepository(db),
		Activity:   database.NewActivityRepository(db),
		Dependents: database.NewDependencyRepository(db),
		Categories: database.NewCategoryRepository(db),
		Statistics: database.NewStatisticsRepository(db),
	}
	app.Metrics = metrics.New(app.Registry)

	if err := app.Actors.EnsureAdmins(ctx, cfg.PrivilegedActorIDs); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed admins: %w", err)
	}

	var sink moderation.NotificationSink = notify.NewLogSink(log)
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramSink(cfg.TelegramToken, app.Actors, app.Metrics, log)
		if err != nil {
			// Moderation works without delivery; notifications go to the log
			log.Warn().Err(err).Msg("telegram notifications disabled")
		} else {
			sink = tg
		}
	}

	app.Engine, err = moderation.New(moderation.Config{
		Entries:    database.NewEntryRepository(db),
		Revisions:  database.NewRevisionRepository(db),
		Activity:   app.Activity,
		Notifier:   sink,
		Dependents: app.Dependents,
		Metrics:    app.Metrics,
		Logger:     log,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return app, nil
}

// Close releases the database connection
func (a *App) Close() error {
	return a.DB.Close()
}

// ResolveActor returns the stored actor for id. Unknown ids act as regular
// users and an empty id is anonymous.
func (a *App) ResolveActor(ctx context.Context, id string) (models.Actor, error) {
	if id == "" {
		return models.Actor{}, nil
	}
	actor, err := a.Actors.Get(ctx, id)
	if err != nil {
		return models.Actor{}, fmt.Errorf("failed to load actor %s: %w", id, err)
	}
	if actor == nil {
		return models.Actor{ID: id, Role: models.RoleUser}, nil
	}
	return *actor, nil
}
