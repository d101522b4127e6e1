package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/dayreport/internal/aggregate"
	"github.com/phrazzld/dayreport/internal/api"
	"github.com/phrazzld/dayreport/internal/auth"
	"github.com/phrazzld/dayreport/internal/config"
	"github.com/phrazzld/dayreport/internal/events"
	"github.com/phrazzld/dayreport/internal/fetch"
	"github.com/phrazzld/dayreport/internal/platform/postgres"
	"github.com/phrazzld/dayreport/internal/quota"
	"github.com/phrazzld/dayreport/internal/report"
	"github.com/phrazzld/dayreport/internal/reveal"
	"github.com/phrazzld/dayreport/internal/task"
	"github.com/spf13/afero"
)

// application holds the wired components of the server.
type application struct {
	config *config.Config
	logger *slog.Logger
	fs     afero.Fs
	db     *sql.DB

	jwtService auth.JWTService
	ledger     *quota.Ledger
	store      *report.Store
	bus        *events.Bus
	runner     *task.Runner
	registry   *task.Registry
	revealer   *reveal.Service
	handler    *api.Handler
	ws         *api.WSHandler
}

// appOption customizes newApplication, mainly for tests.
type appOption func(*application)

// withFs replaces the operating system filesystem.
func withFs(fs afero.Fs) appOption {
	return func(app *application) {
		app.fs = fs
	}
}

// newApplication wires every component from cfg and starts the workers.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...appOption) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		fs:     afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(app)
	}

	if cfg.Auth.JWTSecret != "" {
		svc, err := auth.NewJWTService(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
		}
		app.jwtService = svc
		logger.Info("bearer authentication enabled")
	}

	counter, err := app.setupQuotaStore(ctx)
	if err != nil {
		app.cleanup()
		return nil, err
	}
	app.ledger = quota.NewLedger(counter, cfg.Quota, logger)

	app.store, err = report.NewStore(app.fs, cfg.Storage.DataRoot)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize artifact store: %w", err)
	}
	if err := app.fs.MkdirAll(app.store.Root(), 0o755); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create data root: %w", err)
	}

	renderer, err := report.NewRenderer(cfg.Report.Format)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize renderer: %w", err)
	}

	app.bus = events.NewBus(logger)
	app.runner = task.NewRunner(cfg.Task, logger)
	app.runner.SetErrorHandler(func(job task.Job, err error) {
		logger.Debug("background job finished with error", "job_id", job.ID(), "error", err)
	})

	app.registry = task.NewRegistry(task.Deps{
		Fetcher:    fetch.New(cfg.Fetch, nil, logger),
		Aggregator: aggregate.New(time.Local, time.Now),
		Quota:      app.ledger,
		Renderer:   renderer,
		Store:      app.store,
		Bus:        app.bus,
		Runner:     app.runner,
		Logger:     logger,
	})

	var opener reveal.Opener
	if cfg.Reveal.Enabled {
		opener = reveal.NewExecOpener(logger)
	}
	app.revealer = reveal.New(app.store, opener, logger)

	app.handler = api.NewHandler(app.registry, app.ledger, app.revealer, cfg.Server.Port, logger)
	app.ws = api.NewWSHandler(app.registry, app.revealer, app.bus, cfg.Transport, cfg.Server.Port, logger)

	app.runner.Start()
	logger.Info("Application initialized successfully",
		"workers", cfg.Task.WorkerCount,
		"queue_size", cfg.Task.QueueSize)
	return app, nil
}

// setupQuotaStore returns the configured counter backend. The postgres
// backend opens the database and applies migrations first.
func (app *application) setupQuotaStore(ctx context.Context) (quota.Store, error) {
	switch app.config.Quota.Backend {
	case "postgres":
		if app.config.Database.URL == "" {
			return nil, errors.New("database.url is required for the postgres quota backend")
		}
		db, err := postgres.Open(ctx, app.config.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		app.db = db
		if err := postgres.Migrate(ctx, db, app.logger); err != nil {
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		app.logger.Info("quota counter stored in postgres")
		return postgres.NewQuotaStore(db, app.logger), nil
	default:
		store := quota.NewFileStore(app.fs, app.config.Storage.ConfigRoot)
		app.logger.Info("quota counter stored on disk", "path", store.Path())
		return store, nil
	}
}

// shutdown closes subscriber connections, then stops the workers. Tasks
// still running see their context cancelled and end in the error state.
func (app *application) shutdown(ctx context.Context) {
	if app.ws != nil {
		if err := app.ws.Close(ctx); err != nil {
			app.logger.Warn("websocket connections did not close cleanly", "error", err)
		}
	}
	if app.runner != nil {
		app.runner.Stop()
	}
}

// cleanup releases resources held outside the process.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", "error", err)
		}
		app.db = nil
	}
}
