package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/lorekeep/lorekeep/internal/answer"
	"github.com/lorekeep/lorekeep/internal/assistant"
	"github.com/lorekeep/lorekeep/internal/blob"
	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/database"
	"github.com/lorekeep/lorekeep/internal/inference"
	"github.com/lorekeep/lorekeep/internal/knowledgectx"
	"github.com/lorekeep/lorekeep/internal/log"
	"github.com/lorekeep/lorekeep/internal/reeval"
	"github.com/lorekeep/lorekeep/internal/retrieval"
	"github.com/lorekeep/lorekeep/internal/store"
	"github.com/lorekeep/lorekeep/internal/tags"
	"github.com/lorekeep/lorekeep/internal/vector"
)

// Setup creates and initializes the application. On error, everything
// already initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	if err := database.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.Pool = pool

	blobStore, err := blob.New(ctx, blob.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting blob store: %w", err)
	}
	a.Blob = blobStore

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Gateway = inference.New(inference.NewGenkitCaller(g, embedder), inference.Config{
		ReasoningModel:    cfg.FullModelName(cfg.ReasoningModel),
		StructuringModel:  cfg.FullModelName(cfg.StructuringModel),
		Attempts:          cfg.RetryAttempts,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Temperature:       cfg.Temperature,
		MaxTokens:         cfg.MaxTokens,
	}, logger)

	a.Store = store.New(pool, logger)
	a.Vector = vector.New(pool, logger)
	a.Knowledge = knowledgectx.NewLoader(a.Store, logger)

	reconciler := tags.New(a.Knowledge, a.Store, logger)
	retriever := retrieval.NewRetriever(a.Gateway, a.Vector, logger)
	builder := retrieval.NewContextBuilder(a.Store, logger)

	pipeline := answer.NewPipeline(a.Gateway, structureAnswer(a.Gateway), retriever, builder, logger)
	evaluator := reeval.New(a.Store, a.Blob, a.Knowledge, structureVerdict(a.Gateway), logger)

	a.Session = assistant.New(pipeline, reconciler, evaluator, a.Store, a.Knowledge, logger)
	return a, nil
}

func structureAnswer(g *inference.Gateway) answer.StructureFunc {
	return func(ctx context.Context, system, content string) (answer.StructuredAnswer, error) {
		return inference.Structure[answer.StructuredAnswer](ctx, g, system, content)
	}
}

func structureVerdict(g *inference.Gateway) reeval.StructureFunc {
	return func(ctx context.Context, system, content string) (reeval.Verdict, error) {
		return inference.Structure[reeval.Verdict](ctx, g, system, content)
	}
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
// Ollama requires explicit model and embedder registration; the hosted
// providers discover models by name.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		for _, model := range []string{cfg.ReasoningModel, cfg.StructuringModel} {
			ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
				Name: model,
				Type: "chat",
			}, nil)
		}
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		return g, nil

	case config.ProviderOpenAI:
		g := genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		return g, nil

	default: // gemini / googleai
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		return g, nil
	}
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}
