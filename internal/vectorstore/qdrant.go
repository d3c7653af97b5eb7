package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/logging"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const backendQdrant = "qdrant"

var tracer = otel.Tracer("github.com/fyrsmithlabs/mcp-server-qdrant/internal/vectorstore")

// QdrantStore implements Store on top of a Qdrant client.
type QdrantStore struct {
	client     qdrant.Client
	embedder   Embedder
	vectorSize uint64
	logger     *logging.Logger

	// mu serialises collection creation; collections caches names known to exist.
	mu          sync.Mutex
	collections sync.Map
}

// NewQdrantStore creates a store that auto-creates collections of vectorSize.
func NewQdrantStore(client qdrant.Client, embedder Embedder, vectorSize int, logger *logging.Logger) (*QdrantStore, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: qdrant client is required", ErrInvalidConfig)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("%w: vector size must be positive, got %d", ErrInvalidConfig, vectorSize)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &QdrantStore{
		client:     client,
		embedder:   embedder,
		vectorSize: uint64(vectorSize),
		logger:     logger,
	}, nil
}

// collectionExists consults the cache before asking Qdrant.
func (s *QdrantStore) collectionExists(ctx context.Context, name string) (bool, error) {
	if _, ok := s.collections.Load(name); ok {
		return true, nil
	}
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		s.collections.Store(name, struct{}{})
	}
	return exists, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context, name string) error {
	if _, ok := s.collections.Load(name); ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.collectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if exists {
		return nil
	}

	if err := s.client.CreateCollection(ctx, name, s.vectorSize); err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	s.collections.Store(name, struct{}{})
	CollectionsCreated.WithLabelValues(backendQdrant).Inc()

	s.logger.Info(ctx, "created collection",
		zap.String("collection", name),
		zap.Uint64("vector_size", s.vectorSize),
	)
	return nil
}

// Upsert implements Store.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, records []Record) (err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()
	defer func(start time.Time) { recordOperation(backendQdrant, "upsert", start, err) }(time.Now())

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("record_count", len(records)),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if len(records) == 0 {
		return ErrEmptyRecords
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Content
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(records) {
		return fmt.Errorf("%w: got %d vectors for %d records", ErrEmbeddingFailed, len(vectors), len(records))
	}

	if err := s.ensureCollection(ctx, collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	points := make([]*qdrant.Point, len(records))
	for i, r := range records {
		points[i] = &qdrant.Point{
			ID:      PointID(r.ID),
			Vector:  vectors[i],
			Payload: payloadFor(r),
		}
	}

	if err := s.client.Upsert(ctx, collection, points); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting into %s: %w", collection, err)
	}

	RecordsWritten.WithLabelValues(backendQdrant).Add(float64(len(records)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug(ctx, "upserted records",
		zap.String("collection", collection),
		zap.Int("count", len(records)),
	)
	return nil
}

// Search implements Store.
func (s *QdrantStore) Search(ctx context.Context, collection string, query string, k int) (hits []Hit, err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Search")
	defer span.End()
	defer func(start time.Time) { recordOperation(backendQdrant, "search", start, err) }(time.Now())

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	exists, err := s.collectionExists(ctx, collection)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("checking collection %s: %w", collection, err)
	}
	if !exists {
		span.SetAttributes(attribute.Bool("collection_missing", true))
		return []Hit{}, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}

	points, err := s.client.Search(ctx, collection, vector, uint64(k))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching %s: %w", collection, err)
	}

	hits = make([]Hit, len(points))
	for i, p := range points {
		hits[i] = hitFromPayload(p.ID, p.Payload, p.Score)
	}

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

// Health implements Store.
func (s *QdrantStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// Close implements Store.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
