package main

import (
	"context"
	"errors"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/config"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/embeddings"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/events"
	httpserver "github.com/fyrsmithlabs/mcp-server-qdrant/internal/http"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/logging"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/mcp"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/memory"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/telemetry"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/vectorstore"
)

// run wires every component from configuration and serves the selected
// transport until ctx is canceled or, for stdio, the client disconnects.
//
// Startup order:
//  1. configuration
//  2. telemetry and logging
//  3. embedding provider
//  4. vector store
//  5. event publisher
//  6. memory service and MCP server
//  7. transport
func run(ctx context.Context, opts options) error {
	if err := validateTransport(opts.transport); err != nil {
		return err
	}

	cfg, err := config.LoadWithFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	logger, err := initLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info(ctx, "starting mcp-server-qdrant",
		zap.String("version", version),
		zap.String("transport", opts.transport),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Bool("local_store", cfg.Qdrant.LocalPath != ""),
		zap.Bool("telemetry", tel.IsEnabled()),
	)
	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Error(h.Err))
	}

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	svc, err := memory.NewService(deps.store,
		memory.WithLogger(logger.Named("memory")),
		memory.WithPublisher(deps.publisher),
		memory.WithDefaults(cfg.Memory.DefaultCollection, cfg.Memory.DefaultTopK),
		memory.WithSearchLimit(cfg.Qdrant.SearchLimit),
	)
	if err != nil {
		return fmt.Errorf("creating memory service: %w", err)
	}

	srv, err := mcp.NewServer(&mcp.Config{
		Name:             "mcp-server-qdrant",
		Version:          version,
		Logger:           logger.Named("mcp"),
		StoreDescription: cfg.Tools.StoreDescription,
		FindDescription:  cfg.Tools.FindDescription,
		PinnedCollection: cfg.Qdrant.CollectionName,
	}, svc)
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	return serve(ctx, opts.transport, cfg, srv, logger)
}

func serve(ctx context.Context, transport string, cfg *config.Config, srv *mcp.Server, logger *logging.Logger) error {
	if transport == transportStdio {
		err := srv.Run(ctx, &sdkmcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio server: %w", err)
		}
		logger.Info(context.Background(), "stdio session ended")
		return nil
	}

	httpSrv, err := httpserver.NewServer(srv, logger.Named("http"), &httpserver.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Transport:       httpserver.Transport(transport),
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}
	return httpSrv.Start(ctx)
}

// initLogger builds the zap logger. Console output always goes to stderr so
// stdout stays free for the stdio transport.
func initLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	logCfg, err := logging.ConfigFromSettings(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	logCfg.Output.OTEL = tel.IsEnabled()
	return logging.NewLogger(logCfg, tel.LoggerProvider())
}

// dependencies holds the infrastructure built at startup.
type dependencies struct {
	embedder  embeddings.Provider
	store     vectorstore.Store
	publisher events.Publisher
	logger    *logging.Logger
}

// Close releases everything in reverse construction order.
func (d *dependencies) Close() {
	ctx := context.Background()
	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			d.logger.Warn(ctx, "closing event publisher", zap.Error(err))
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn(ctx, "closing vector store", zap.Error(err))
		}
	}
	if d.embedder != nil {
		if err := d.embedder.Close(); err != nil {
			d.logger.Warn(ctx, "closing embedding provider", zap.Error(err))
		}
	}
}

func initDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*dependencies, error) {
	deps := &dependencies{logger: logger}

	embedder, err := embeddings.NewProvider(ctx, embeddings.ProviderConfig{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey.Value(),
		CacheDir:  cfg.Embedding.CacheDir,
		RateLimit: cfg.Embedding.RateLimit,
		Logger:    logger.Named("embeddings"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	deps.embedder = embedder

	store, err := vectorstore.NewStore(ctx, cfg, embedder, embedder.Dimension(), logger.Named("vectorstore"))
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("creating vector store: %w", err)
	}
	deps.store = store

	if err := store.Health(ctx); err != nil {
		logger.Warn(ctx, "vector store not reachable yet", zap.Error(err))
	}

	if cfg.Events.Enabled() {
		pub, err := events.Connect(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger.Named("events"))
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		deps.publisher = pub
		logger.Info(ctx, "publishing memory events",
			zap.String("url", cfg.Events.NATSURL),
			zap.String("subject_prefix", cfg.Events.SubjectPrefix),
		)
	} else {
		deps.publisher = events.NopPublisher{}
	}

	return deps, nil
}
