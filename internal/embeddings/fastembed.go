//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/logging"
	"go.uber.org/zap"
)

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	// Model defaults to sentence-transformers/all-MiniLM-L6-v2.
	Model string

	// CacheDir holds downloaded models and the ONNX runtime. "~" is expanded.
	CacheDir string

	// MaxLength is the maximum input sequence length. Default: 512.
	MaxLength int

	Logger *logging.Logger
}

// FastEmbedProvider generates embeddings in-process with ONNX models.
type FastEmbedProvider struct {
	model     *fastembed.FlagEmbedding
	modelName string
	dimension int
	metrics   *Metrics

	// mu serialises Close against in-flight inference.
	mu sync.RWMutex
}

var fastEmbedModels = map[string]fastembed.EmbeddingModel{
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
}

// NewFastEmbedProvider loads the model, downloading the ONNX runtime and model
// files into CacheDir on first use.
func NewFastEmbedProvider(ctx context.Context, cfg FastEmbedConfig) (*FastEmbedProvider, error) {
	if cfg.Model == "" {
		cfg.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = 512
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}

	dimension, ok := fastEmbedModelDimension(cfg.Model)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported fastembed model %q (supported: sentence-transformers/all-MiniLM-L6-v2, BAAI/bge-small-en-v1.5, BAAI/bge-base-en-v1.5)", ErrInvalidConfig, cfg.Model)
	}
	model, ok := fastEmbedModels[cfg.Model]
	if !ok {
		model = fastembed.EmbeddingModel(cfg.Model)
	}

	cacheDir, err := expandHome(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	if _, err := EnsureONNXRuntime(ctx, cacheDir, cfg.Logger); err != nil {
		return nil, err
	}

	showProgress := false
	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            cfg.MaxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing FastEmbed: %w", err)
	}

	cfg.Logger.Debug(ctx, "fastembed model loaded",
		zap.String("model", cfg.Model),
		zap.String("cache_dir", cacheDir),
	)

	return &FastEmbedProvider{
		model:     flagEmbed,
		modelName: cfg.Model,
		dimension: dimension,
		metrics:   NewMetrics(cfg.Logger.Underlying()),
	}, nil
}

// EmbedDocuments embeds texts as passages.
func (p *FastEmbedProvider) EmbedDocuments(ctx context.Context, texts []string) (vecs [][]float32, err error) {
	defer p.metrics.Track(ctx, p.modelName, "embed_documents", len(texts))(&err)

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.model == nil {
		return nil, fmt.Errorf("%w: provider closed", ErrEmbeddingFailed)
	}

	vecs, err = p.model.PassageEmbed(texts, 256)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vecs, nil
}

// EmbedQuery embeds a single search query.
func (p *FastEmbedProvider) EmbedQuery(ctx context.Context, text string) (vec []float32, err error) {
	defer p.metrics.Track(ctx, p.modelName, "embed_query", 1)(&err)

	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.model == nil {
		return nil, fmt.Errorf("%w: provider closed", ErrEmbeddingFailed)
	}

	vec, err = p.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vec, nil
}

// Dimension returns the embedding dimension for the current model.
func (p *FastEmbedProvider) Dimension() int {
	return p.dimension
}

// Close releases the ONNX session.
func (p *FastEmbedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model == nil {
		return nil
	}
	err := p.model.Destroy()
	p.model = nil
	return err
}
