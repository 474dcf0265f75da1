// Package app holds the wired components of a DevFlow process. The server
// starts the HTTP listener; the CLI uses the same components directly.
package app

import (
	"log/slog"

	"github.com/sevigo/devflow/internal/config"
	"github.com/sevigo/devflow/internal/db"
	"github.com/sevigo/devflow/internal/github"
	"github.com/sevigo/devflow/internal/jobs"
	"github.com/sevigo/devflow/internal/llm"
	"github.com/sevigo/devflow/internal/server"
	"github.com/sevigo/devflow/internal/storage"
)

// App holds the main application components.
type App struct {
	Cfg     *config.Config
	Logger  *slog.Logger
	DB      *db.DB
	Store   storage.Store
	GitHub  github.Client
	Job     *jobs.ReviewJob
	Indexer *llm.Indexer

	server     *server.Server
	dispatcher *jobs.Dispatcher
}

// NewApp assembles an App. dispatcher is nil when reviews run synchronously.
func NewApp(
	cfg *config.Config,
	logger *slog.Logger,
	database *db.DB,
	store storage.Store,
	gh github.Client,
	job *jobs.ReviewJob,
	indexer *llm.Indexer,
	dispatcher *jobs.Dispatcher,
	srv *server.Server,
) *App {
	return &App{
		Cfg:        cfg,
		Logger:     logger,
		DB:         database,
		Store:      store,
		GitHub:     gh,
		Job:        job,
		Indexer:    indexer,
		server:     srv,
		dispatcher: dispatcher,
	}
}

// Start runs the HTTP server and blocks until it stops.
func (a *App) Start() error {
	a.Logger.Info("starting DevFlow",
		"address", a.server.Addr(),
		"async", a.dispatcher != nil,
		"generator_model", a.Cfg.AI.GeneratorModel,
		"embedder_model", a.Cfg.AI.EmbedderModel,
	)

	if err := a.server.Start(); err != nil {
		a.Logger.Error("failed to start HTTP server", "error", err)
		return err
	}
	return nil
}

// Stop shuts down the server, then drains queued reviews. The database is
// closed by the cleanup returned from the injector.
func (a *App) Stop() error {
	a.Logger.Info("shutting down DevFlow services")

	serverErr := a.server.Stop()
	if serverErr != nil {
		// Continue so queued reviews still drain.
		a.Logger.Error("error during HTTP server shutdown", "error", serverErr)
	}

	if a.dispatcher != nil {
		a.dispatcher.Stop()
	}

	if serverErr != nil {
		return serverErr
	}
	a.Logger.Info("DevFlow stopped successfully")
	return nil
}
