package embeddings

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// OpenAIConfig configures an OpenAI or OpenAI-compatible embedding endpoint.
type OpenAIConfig struct {
	// BaseURL overrides https://api.openai.com/v1, e.g. for Ollama or vLLM.
	BaseURL string

	// Model defaults to text-embedding-3-small.
	Model string

	// APIKey is required by api.openai.com; local servers accept any value.
	APIKey string

	// RateLimit caps requests per second. 0 disables limiting.
	RateLimit float64
}

// OpenAIProvider embeds text through langchaingo's OpenAI client.
type OpenAIProvider struct {
	embedder  *embeddings.EmbedderImpl
	limiter   *rate.Limiter
	model     string
	dimension int
	metrics   *Metrics
}

// NewOpenAIProvider creates the provider and resolves the model dimension.
func NewOpenAIProvider(ctx context.Context, cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.Model == "" || cfg.Model == "sentence-transformers/all-MiniLM-L6-v2" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.APIKey == "" {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: openai provider needs EMBEDDING_API_KEY or OPENAI_API_KEY", ErrInvalidConfig)
		}
		cfg.APIKey = "unused"
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("%w: rate limit cannot be negative", ErrInvalidConfig)
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating openai embedder: %w", err)
	}

	p := &OpenAIProvider{
		embedder: embedder,
		model:    cfg.Model,
		metrics:  NewMetrics(zap.NewNop()),
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	p.dimension = knownDimension(cfg.Model)
	if p.dimension == 0 {
		vec, err := p.EmbedQuery(ctx, "dimension probe")
		if err != nil {
			return nil, fmt.Errorf("probing embedding dimension: %w", err)
		}
		p.dimension = len(vec)
	}

	return p, nil
}

func (p *OpenAIProvider) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) (vecs [][]float32, err error) {
	defer p.metrics.Track(ctx, p.model, "embed_documents", len(texts))(&err)

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	vecs, err = p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vecs, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) (vec []float32, err error) {
	defer p.metrics.Track(ctx, p.model, "embed_query", 1)(&err)

	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	vec, err = p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
	}
	return vec, nil
}

// Dimension returns the embedding dimension for the current model.
func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op; the HTTP client holds no resources.
func (p *OpenAIProvider) Close() error {
	return nil
}
