package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyRecords indicates an empty or nil record batch.
	ErrEmptyRecords = errors.New("empty or nil records")

	// ErrEmptyQuery indicates an empty search query.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Embedder generates vector embeddings from text.
//
// Implementations can use local models (FastEmbed) or remote APIs (OpenAI, TEI).
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store persists records with their embeddings and answers similarity queries.
//
// Collections are created on first write. Searching a collection that does not
// exist yet returns no hits rather than an error.
//
// Implementations:
//   - QdrantStore: Qdrant over gRPC (default)
//   - ChromemStore: embedded chromem-go, used when a local path is configured
type Store interface {
	// Upsert embeds the records' content and writes them to collection. A record
	// whose ID already exists replaces the stored one.
	Upsert(ctx context.Context, collection string, records []Record) error

	// Search returns up to k hits from collection ordered by descending score.
	Search(ctx context.Context, collection string, query string, k int) ([]Hit, error)

	// Health reports whether the backing store is reachable.
	Health(ctx context.Context) error

	// Close releases the store's connections.
	Close() error
}
