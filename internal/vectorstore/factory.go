package vectorstore

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/config"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/logging"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/qdrant"
	"go.uber.org/zap"
)

// NewStore creates the Store selected by the configuration:
//   - qdrant.local_path set: an embedded ChromemStore persisted at that path
//   - otherwise: a QdrantStore connected to qdrant.url over gRPC
//
// vectorSize is the embedder's output dimension, used when collections are
// created.
func NewStore(ctx context.Context, cfg *config.Config, embedder Embedder, vectorSize int, logger *logging.Logger) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if cfg.Qdrant.LocalPath != "" {
		logger.Info(ctx, "using embedded vector store", zap.String("path", cfg.Qdrant.LocalPath))
		return NewChromemStore(ChromemConfig{Path: cfg.Qdrant.LocalPath}, embedder, logger)
	}

	host, port, useTLS, err := cfg.Qdrant.Endpoint()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	client, err := qdrant.NewGRPCClient(&qdrant.ClientConfig{
		Host:   host,
		Port:   port,
		UseTLS: useTLS,
		APIKey: cfg.Qdrant.APIKey.Value(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	store, err := NewQdrantStore(client, embedder, vectorSize, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}
