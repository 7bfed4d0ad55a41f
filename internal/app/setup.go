package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Hemant277123/NexusAI/db"
	"github.com/Hemant277123/NexusAI/internal/agent"
	httpapi "github.com/Hemant277123/NexusAI/internal/api"
	"github.com/Hemant277123/NexusAI/internal/chats"
	"github.com/Hemant277123/NexusAI/internal/config"
	"github.com/Hemant277123/NexusAI/internal/log"
	"github.com/Hemant277123/NexusAI/internal/memory"
	"github.com/Hemant277123/NexusAI/internal/search"
	"github.com/Hemant277123/NexusAI/internal/transcript"
)

// Setup creates and initializes the application. Call Close() on the
// returned App to release resources.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	a := &App{
		Config:      cfg,
		Logger:      logger,
		Transcripts: transcript.NewStore(),
		Chats:       chats.NewRegistry(),
	}

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	toolList, err := provideSearch(a, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Memory, err = provideMemory(cfg, embedder, logger)
	if err != nil {
		return nil, err
	}

	generator, err := agent.NewGenkitGenerator(g, toolList, cfg.MaxToolRounds)
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	a.bgCancel = bgCancel
	a.wg = &sync.WaitGroup{}

	a.Agents, err = agent.NewRegistry(agent.Config{
		Generator:     generator,
		Transcripts:   a.Transcripts,
		Logger:        logger,
		Memory:        a.Memory,
		Temperature:   cfg.Temperature,
		BackgroundCtx: bgCtx,
		WG:            a.wg,
	})
	if err != nil {
		return nil, fmt.Errorf("creating agent registry: %w", err)
	}

	a.Server, err = httpapi.NewServer(httpapi.ServerConfig{
		Logger:      logger,
		Config:      cfg,
		Agents:      a.Agents,
		Transcripts: a.Transcripts,
		Chats:       a.Chats,
		Memory:      a.Memory,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   rateBurstFromEnv(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}

	return a, nil
}

// rateBurstFromEnv reads NEXUSAI_RATE_BURST from the environment.
// Returns 0 (use default) if unset or invalid.
func rateBurstFromEnv() int {
	v := os.Getenv("NEXUSAI_RATE_BURST")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// provideOtelShutdown sets up OTLP trace export before Genkit
// initialization so the TracerProvider is ready when flows start.
// Traces go to a local collector agent over OTLP HTTP.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	tc := cfg.Tracing
	if !tc.Enabled {
		return func() {}
	}

	agentHost := tc.AgentHost
	if agentHost == "" {
		agentHost = "localhost:4318"
	}

	// Set OTEL env vars for Genkit's TracerProvider to pick up.
	// SAFETY: os.Setenv is not concurrent-safe, but this runs exactly
	// once during startup before goroutines are spawned.
	if tc.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", tc.ServiceName)
	}
	if tc.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+tc.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(agentHost),
		otlptracehttp.WithInsecure(), // local agent, no TLS
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"agent", agentHost,
		"service", tc.ServiceName,
		"environment", tc.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the OpenAI-compatible plugin.
// The plugin reads OPENAI_API_KEY from the environment and registers
// models and embedders during Init.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with openai provider")
	}
	return g, nil
}

// provideSearch creates the Tavily client and registers the web search
// tool. Without an API key the assistant runs with no tools; the config
// endpoint reports the missing key to the frontend.
func provideSearch(a *App, cfg *config.Config, logger log.Logger) ([]ai.Tool, error) {
	if cfg.Search.APIKey == "" {
		logger.Warn("search API key not configured, web search disabled")
		return nil, nil
	}

	client, err := search.NewClient(search.Config{
		APIKey:     cfg.Search.APIKey,
		MaxResults: cfg.Search.MaxResults,
		Topic:      cfg.Search.Topic,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating search client: %w", err)
	}
	a.Search = client

	return []ai.Tool{search.DefineTool(a.Genkit, client)}, nil
}

// provideMemory creates the semantic memory retriever. The backend
// connects lazily on first use: migrations run and the pool opens the
// first time a turn needs recall, and a failure disables memory for
// the process lifetime instead of failing requests.
func provideMemory(cfg *config.Config, embedder ai.Embedder, logger log.Logger) (*memory.Retriever, error) {
	url := cfg.PostgresURL()
	connect := memory.ConnectPostgres(url, func() error {
		return db.Migrate(url)
	})

	return memory.NewRetriever(memory.Config{
		Embedder:   embedder,
		Connect:    connect,
		RetrievalK: cfg.RetrievalK,
		Logger:     logger,
	})
}
