package memory

import (
	"context"
	"fmt"
	"maps"
	"math"
	"sort"
	"time"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/events"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/logging"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/vectorstore"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	// DefaultCollection is used when a request names no collection.
	DefaultCollection = "default"

	// DefaultTopK is the number of Query results when TopK is unset.
	DefaultTopK = 3

	// DefaultSearchLimit is the number of Find results when no limit is given.
	DefaultSearchLimit = 10
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/mcp-server-qdrant/internal/memory")

// Service stores and retrieves memories through a vectorstore.Store.
type Service struct {
	store             vectorstore.Store
	logger            *logging.Logger
	publisher         events.Publisher
	now               func() time.Time
	defaultCollection string
	defaultTopK       int
	searchLimit       int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPublisher sends an event for every store and query.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithClock overrides the time source used for metadata timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDefaults overrides the default collection and top-k of Upsert and Query.
// Zero values keep the built-in defaults.
func WithDefaults(collection string, topK int) Option {
	return func(s *Service) {
		if collection != "" {
			s.defaultCollection = collection
		}
		if topK > 0 {
			s.defaultTopK = topK
		}
	}
}

// WithSearchLimit sets the number of results Find returns when no limit is given.
func WithSearchLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.searchLimit = limit
		}
	}
}

// NewService creates a memory service over store.
func NewService(store vectorstore.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}

	s := &Service{
		store:             store,
		logger:            logging.NewNop(),
		publisher:         events.NopPublisher{},
		now:               time.Now,
		defaultCollection: DefaultCollection,
		defaultTopK:       DefaultTopK,
		searchLimit:       DefaultSearchLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Upsert stores content under req.ID, or a fresh UUID, in req.Collection.
//
// The stored metadata is a copy of req.Metadata plus:
//   - timestamp, unless the caller supplied one
//   - content, the stored text
//   - collection_name, the collection actually written to
//
// A non-UUID id is mapped to a stable point id, so upserting the same id again
// replaces the earlier record.
func (s *Service) Upsert(ctx context.Context, req UpsertRequest) (*UpsertResult, error) {
	ctx, span := tracer.Start(ctx, "memory.Upsert")
	defer span.End()

	if req.Content == "" {
		return nil, ErrEmptyContent
	}
	collection := req.Collection
	if collection == "" {
		collection = s.defaultCollection
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	span.SetAttributes(attribute.String("collection", collection), attribute.String("memory.id", id))

	md := make(map[string]any, len(req.Metadata)+3)
	maps.Copy(md, req.Metadata)
	if _, ok := md[MetadataTimestamp]; !ok {
		md[MetadataTimestamp] = s.now().UTC().Format(TimestampFormat)
	}
	md[MetadataContent] = req.Content
	md[MetadataCollection] = collection

	record := vectorstore.Record{
		ID:       vectorstore.PointID(id),
		Content:  req.Content,
		Metadata: md,
	}
	if record.ID != id {
		record.MemoryID = id
	}

	if err := s.store.Upsert(ctx, collection, []vectorstore.Record{record}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("storing memory: %w", err)
	}

	s.logger.Info(ctx, "memory stored",
		zap.String("collection", collection),
		zap.String("id", id),
	)
	s.publish(ctx, events.Event{Type: events.TypeStored, Collection: collection, MemoryID: id})

	return &UpsertResult{
		Status:     "success",
		ID:         id,
		Collection: collection,
		Metadata:   md,
	}, nil
}

// Query returns the req.TopK records nearest to req.Query, highest score first.
// A collection that does not exist yet yields no items.
func (s *Service) Query(ctx context.Context, req QueryRequest) ([]Item, error) {
	ctx, span := tracer.Start(ctx, "memory.Query")
	defer span.End()

	if req.Query == "" {
		return nil, ErrEmptyQuery
	}
	collection := req.Collection
	if collection == "" {
		collection = s.defaultCollection
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.defaultTopK
	}
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("top_k", topK))

	hits, err := s.store.Search(ctx, collection, req.Query, topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying memories: %w", err)
	}

	items := make([]Item, len(hits))
	for i, h := range hits {
		id := h.ID
		if h.MemoryID != "" {
			id = h.MemoryID
		}
		items[i] = Item{
			ID:       id,
			Content:  h.Content,
			Metadata: h.Metadata,
			Score:    roundScore(h.Score),
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })

	s.logger.Debug(ctx, "memory query completed",
		zap.String("collection", collection),
		zap.Int("top_k", topK),
		zap.String("user_id", req.UserID),
		zap.Int("results", len(items)),
	)
	s.publish(ctx, events.Event{Type: events.TypeQueried, Collection: collection, Query: req.Query, Results: len(items)})

	return items, nil
}

// Store writes entry to collection as-is. An empty collection means the
// default one.
func (s *Service) Store(ctx context.Context, entry Entry, collection string) error {
	ctx, span := tracer.Start(ctx, "memory.Store")
	defer span.End()

	if entry.Content == "" {
		return ErrEmptyContent
	}
	if collection == "" {
		collection = s.defaultCollection
	}
	span.SetAttributes(attribute.String("collection", collection))

	id := uuid.NewString()
	record := vectorstore.Record{ID: id, Content: entry.Content, Metadata: entry.Metadata}
	if err := s.store.Upsert(ctx, collection, []vectorstore.Record{record}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("storing entry: %w", err)
	}

	s.logger.Info(ctx, "entry stored", zap.String("collection", collection), zap.String("id", id))
	s.publish(ctx, events.Event{Type: events.TypeStored, Collection: collection, MemoryID: id})
	return nil
}

// Find returns up to limit entries relevant to query. A limit of 0 uses the
// configured search limit.
func (s *Service) Find(ctx context.Context, query, collection string, limit int) ([]Entry, error) {
	ctx, span := tracer.Start(ctx, "memory.Find")
	defer span.End()

	if query == "" {
		return nil, ErrEmptyQuery
	}
	if collection == "" {
		collection = s.defaultCollection
	}
	if limit <= 0 {
		limit = s.searchLimit
	}
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("limit", limit))

	hits, err := s.store.Search(ctx, collection, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("finding entries: %w", err)
	}

	entries := make([]Entry, len(hits))
	for i, h := range hits {
		entries[i] = Entry{Content: h.Content, Metadata: h.Metadata, Score: roundScore(h.Score)}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })

	s.publish(ctx, events.Event{Type: events.TypeQueried, Collection: collection, Query: query, Results: len(entries)})
	return entries, nil
}

// Health reports whether the backing store is reachable.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn(ctx, "failed to publish memory event",
			zap.String("type", e.Type),
			zap.String("collection", e.Collection),
			zap.Error(err),
		)
	}
}

// roundScore maps a missing score to 1.0 and rounds to 4 decimals.
func roundScore(score *float32) float64 {
	if score == nil {
		return 1.0
	}
	return math.Round(float64(*score)*1e4) / 1e4
}
