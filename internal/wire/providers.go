// Package wire builds the application object graph with google/wire.
package wire

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sevigo/devflow/internal/config"
	"github.com/sevigo/devflow/internal/core"
	"github.com/sevigo/devflow/internal/db"
	"github.com/sevigo/devflow/internal/github"
	"github.com/sevigo/devflow/internal/gitutil"
	"github.com/sevigo/devflow/internal/jobs"
	"github.com/sevigo/devflow/internal/llm"
	"github.com/sevigo/devflow/internal/logger"
	"github.com/sevigo/devflow/internal/server"
	"github.com/sevigo/devflow/internal/server/handler"
	"github.com/sevigo/devflow/internal/storage"
)

func provideLogger(cfg *config.Config) *slog.Logger {
	return logger.NewLogger(cfg.Logging, nil)
}

func provideDBConfig(cfg *config.Config) *config.DBConfig {
	return &cfg.Database
}

func provideDatabase(cfg *config.DBConfig, logger *slog.Logger) (*db.DB, func(), error) {
	return db.NewDatabase(cfg, logger)
}

func provideSQLX(database *db.DB) *sqlx.DB {
	return database.DB
}

func provideGitHubClient(cfg *config.Config, logger *slog.Logger) (github.Client, error) {
	return github.NewClientFromConfig(&cfg.GitHub, logger)
}

// Per-call timeouts are applied by GeminiClient itself; the transport only
// bounds connection setup.
func newLLMHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			MaxConnsPerHost:     10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

func provideGeminiClient(cfg *config.Config, logger *slog.Logger) (*llm.GeminiClient, error) {
	return llm.NewGeminiClient(llm.GeminiConfigFromAI(&cfg.AI), newLLMHTTPClient(), logger)
}

func provideContextRetriever(cfg *config.Config, embedder llm.Embedder, index storage.SnippetIndex, logger *slog.Logger) llm.ContextRetriever {
	return llm.NewContextRetriever(embedder, index, cfg.AI.ContextSnippets, logger)
}

func secretsOf(cfg *config.Config) []string {
	return []string{cfg.GitHub.Token, cfg.GitHub.WebhookSecret, cfg.AI.GeminiAPIKey, cfg.Database.Password}
}

func provideReviewJob(cfg *config.Config, gh github.Client, store storage.Store, retriever llm.ContextRetriever, analyzer llm.Analyzer, logger *slog.Logger) *jobs.ReviewJob {
	return jobs.NewReviewJob(gh, store, retriever, analyzer, logger, secretsOf(cfg)...)
}

// provideDispatcher returns nil unless review.async is set.
func provideDispatcher(ctx context.Context, cfg *config.Config, job *jobs.ReviewJob, logger *slog.Logger) (*jobs.Dispatcher, func()) {
	if !cfg.Review.Async {
		return nil, func() {}
	}
	d := jobs.NewDispatcher(ctx, job, cfg.Review.MaxWorkers, cfg.Review.QueueSize, cfg.Review.JobTimeout, logger)
	return d, d.Stop
}

func provideWebhookHandler(cfg *config.Config, job *jobs.ReviewJob, d *jobs.Dispatcher, logger *slog.Logger) *handler.WebhookHandler {
	var dispatcher core.JobDispatcher
	if d != nil {
		dispatcher = d
	}
	return handler.NewWebhookHandler(cfg.GitHub.WebhookSecret, job, dispatcher, cfg.Review.JobTimeout, logger, secretsOf(cfg)...)
}

func provideRouter(cfg *config.Config, webhook *handler.WebhookHandler, reviews *handler.ReviewsHandler, logger *slog.Logger) http.Handler {
	return server.NewRouter(webhook, reviews, cfg.Server.RequestTimeout, logger)
}

func provideServer(cfg *config.Config, router http.Handler, logger *slog.Logger) *server.Server {
	return server.NewServer(&cfg.Server, router, logger)
}

func provideIndexer(cfg *config.Config, git *gitutil.Client, embedder llm.Embedder, index storage.SnippetIndex, logger *slog.Logger) *llm.Indexer {
	return llm.NewIndexer(git, embedder, index, cfg.AI.IndexConcurrency, logger)
}
