//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"github.com/sevigo/devflow/internal/app"
	"github.com/sevigo/devflow/internal/config"
	"github.com/sevigo/devflow/internal/gitutil"
	"github.com/sevigo/devflow/internal/llm"
	"github.com/sevigo/devflow/internal/server/handler"
	"github.com/sevigo/devflow/internal/storage"
)

func InitializeApp(ctx context.Context) (*app.App, func(), error) {
	wire.Build(
		app.NewApp,
		config.LoadConfig,
		provideLogger,
		provideDBConfig,
		provideDatabase,
		provideSQLX,
		storage.NewStore,
		storage.NewSnippetIndex,
		provideGitHubClient,
		provideGeminiClient,
		wire.Bind(new(llm.Generator), new(*llm.GeminiClient)),
		wire.Bind(new(llm.Embedder), new(*llm.GeminiClient)),
		llm.NewPromptManager,
		llm.NewAnalyzer,
		provideContextRetriever,
		provideReviewJob,
		provideDispatcher,
		provideWebhookHandler,
		handler.NewReviewsHandler,
		provideRouter,
		provideServer,
		gitutil.NewClient,
		provideIndexer,
	)
	return &app.App{}, nil, nil
}
