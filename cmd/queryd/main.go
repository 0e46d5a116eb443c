// Queryd answers natural-language questions about documents supplied by URL.
//
// It builds a retrieval index per document, caches it across requests, and
// routes each request to either retrieval-augmented generation or a bounded
// reasoning agent depending on the document's content.
//
// Usage:
//
//	# Start with defaults
//	queryd serve
//
//	# Start with a config file
//	queryd serve --config queryd.yaml
//
//	# Configure via environment
//	SERVER_PORT=9000 GENERATION_PRIMARY_API_KEY=sk-... queryd serve
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/queryd/internal/agent"
	"github.com/fyrsmithlabs/queryd/internal/config"
	"github.com/fyrsmithlabs/queryd/internal/document"
	"github.com/fyrsmithlabs/queryd/internal/embeddings"
	qhttp "github.com/fyrsmithlabs/queryd/internal/http"
	"github.com/fyrsmithlabs/queryd/internal/index"
	"github.com/fyrsmithlabs/queryd/internal/llm"
	"github.com/fyrsmithlabs/queryd/internal/logging"
	"github.com/fyrsmithlabs/queryd/internal/rag"
	"github.com/fyrsmithlabs/queryd/internal/workflow"
)

var (
	// configPath is the optional YAML config file location.
	configPath string
	// version information (set via ldflags during build)
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "queryd",
	Short:   "Document question-answering service",
	Long:    `queryd ingests documents from URLs and answers questions about them, choosing between retrieval-augmented generation and an autonomous reasoning agent per document.`,
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the queryd HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, err := buildOrchestrator(ctx, cfg, logger)
	if err != nil {
		return err
	}

	server, err := qhttp.NewServer(orch, logger, &qhttp.Config{
		Host:  cfg.Server.Host,
		Port:  cfg.Server.Port,
		Token: cfg.Auth.Token.Value(),
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout.Duration()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildOrchestrator wires the full pipeline from configuration.
func buildOrchestrator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*workflow.Orchestrator, error) {
	provider, err := embeddings.NewOpenAIProvider(cfg.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("build embedding provider: %w", err)
	}
	embedSvc := embeddings.NewService(
		provider,
		embeddings.NewCache(cfg.Cache.EmbeddingDir, logger),
		cfg.Embeddings.BatchSize,
		cfg.Embeddings.Concurrency,
		logger,
	)

	indexCache := index.NewCache(index.CacheConfig{
		Dir:      cfg.Cache.IndexDir,
		Compress: cfg.Cache.Compress,
	}, logger)

	chain, err := llm.NewFallbackChain(ctx, cfg.Generation, logger)
	if err != nil {
		return nil, fmt.Errorf("build generation chain: %w", err)
	}

	agentModel, err := llm.NewGenerator(ctx, cfg.Agent.LLM)
	if err != nil {
		return nil, fmt.Errorf("build agent model: %w", err)
	}
	reasoner := agent.New(
		llm.NewFallbackChainFrom([]llm.Generator{agentModel}, logger),
		[]agent.Tool{
			agent.NewWebFetchTool(cfg.Agent.ToolTimeout.Duration()),
			agent.NewAPICallTool(cfg.Agent.ToolTimeout.Duration()),
		},
		agent.Config{
			MaxSteps:    cfg.Agent.MaxSteps,
			ToolTimeout: cfg.Agent.ToolTimeout.Duration(),
		},
		logger,
	)

	return workflow.New(workflow.Options{
		Fetcher:       document.NewFetcher(cfg.Ingest.FetchTimeout.Duration(), logger),
		Registry:      document.NewRegistry(),
		Chunker:       document.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
		Embeddings:    embedSvc,
		IndexCache:    indexCache,
		Answerer:      rag.NewAnswerer(chain, logger),
		Agent:         reasoner,
		TopK:          cfg.Ingest.TopK,
		QAConcurrency: cfg.Ingest.QAConcurrency,
		Logger:        logger,
	}), nil
}
