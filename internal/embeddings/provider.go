package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/logging"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/vectorstore"
	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider is an embedder with a fixed output dimension.
type Provider interface {
	vectorstore.Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is one of "fastembed", "openai" or "tei".
	Provider string
	Model    string

	// BaseURL is the TEI server or an OpenAI-compatible endpoint.
	BaseURL string
	APIKey  string

	// CacheDir holds FastEmbed models and the ONNX runtime.
	CacheDir string

	// RateLimit caps OpenAI requests per second; 0 disables the limiter.
	RateLimit float64

	Logger *logging.Logger
}

// NewProvider creates the configured embedding provider. Remote providers whose model
// dimension is not known up front are probed with a single embedding request.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "fastembed", "":
		p, err = NewFastEmbedProvider(ctx, FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
			Logger:   logger,
		})
	case "openai":
		p, err = NewOpenAIProvider(ctx, OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			APIKey:    cfg.APIKey,
			RateLimit: cfg.RateLimit,
		})
	case "tei":
		var svc *Service
		svc, err = NewService(Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		})
		if err == nil {
			p, err = withDimension(ctx, svc, knownDimension(cfg.Model))
		}
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "embedding provider ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("dimension", p.Dimension()),
	)
	return p, nil
}

// knownDimension returns the output size of well-known models, or 0.
func knownDimension(model string) int {
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}
	switch strings.ToLower(model) {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	case "nomic-embed-text", "nomic-ai/nomic-embed-text-v1.5":
		return 768
	case "mxbai-embed-large", "mixedbread-ai/mxbai-embed-large-v1":
		return 1024
	}
	return 0
}

// fixedDimension attaches a dimension to an embedder without one.
type fixedDimension struct {
	vectorstore.Embedder
	dimension int
	closer    func() error
}

func (f *fixedDimension) Dimension() int { return f.dimension }

func (f *fixedDimension) Close() error {
	if f.closer != nil {
		return f.closer()
	}
	return nil
}

// withDimension wraps e with dim, probing the model when dim is 0.
func withDimension(ctx context.Context, e vectorstore.Embedder, dim int) (*fixedDimension, error) {
	if dim == 0 {
		vec, err := e.EmbedQuery(ctx, "dimension probe")
		if err != nil {
			return nil, fmt.Errorf("probing embedding dimension: %w", err)
		}
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: model returned an empty vector", ErrEmbeddingFailed)
		}
		dim = len(vec)
	}
	return &fixedDimension{Embedder: e, dimension: dim}, nil
}
