package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/logging"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const backendChromem = "chromem"

// chromem keeps metadata as map[string]string, so the payload is JSON-encoded
// into these keys.
const (
	chromemMetadataKey = "metadata"
	chromemMemoryIDKey = "memory_id"
)

// ChromemConfig holds configuration for the embedded chromem-go store.
type ChromemConfig struct {
	// Path is the directory for persistent storage. "~" is expanded.
	Path string

	// Compress enables gzip compression for stored documents.
	Compress bool
}

// ChromemStore implements Store with chromem-go, persisted under a local path.
//
// It stands in for a Qdrant server when QDRANT_LOCAL_PATH is set. Every
// collection is held in memory and written through to disk.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	path     string
	logger   *logging.Logger

	// mu serialises collection creation.
	mu sync.Mutex
}

// NewChromemStore opens or creates the database at config.Path.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *logging.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if config.Path == "" {
		return nil, fmt.Errorf("%w: path is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	path, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem DB: %w", err)
	}

	logger.Info(context.Background(), "chromem store opened",
		zap.String("path", path),
		zap.Bool("compress", config.Compress),
		zap.Int("collections", len(db.ListCollections())),
	)

	return &ChromemStore{
		db:       db,
		embedder: embedder,
		path:     path,
		logger:   logger,
	}, nil
}

func expandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

func (s *ChromemStore) collection(ctx context.Context, name string, create bool) (*chromem.Collection, error) {
	if c := s.db.GetCollection(name, s.embeddingFunc()); c != nil || !create {
		return c, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.db.GetCollection(name, s.embeddingFunc()); c != nil {
		return c, nil
	}
	c, err := s.db.CreateCollection(name, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", name, err)
	}
	CollectionsCreated.WithLabelValues(backendChromem).Inc()
	s.logger.Info(ctx, "created collection", zap.String("collection", name))
	return c, nil
}

// Upsert implements Store.
func (s *ChromemStore) Upsert(ctx context.Context, collection string, records []Record) (err error) {
	ctx, span := tracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()
	defer func(start time.Time) { recordOperation(backendChromem, "upsert", start, err) }(time.Now())

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

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		md, err := encodeChromemMetadata(r)
		if err != nil {
			return err
		}
		docs[i] = chromem.Document{
			ID:        PointID(r.ID),
			Content:   r.Content,
			Metadata:  md,
			Embedding: vectors[i],
		}
	}

	c, err := s.collection(ctx, collection, true)
	if err != nil {
		span.RecordError(err)
		return err
	}

	// Embeddings are precomputed, so one goroutine is enough.
	if err := c.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents to %s: %w", collection, err)
	}

	RecordsWritten.WithLabelValues(backendChromem).Add(float64(len(records)))
	span.SetStatus(codes.Ok, "success")
	s.logger.Debug(ctx, "upserted records",
		zap.String("collection", collection),
		zap.Int("count", len(records)),
	)
	return nil
}

// Search implements Store.
func (s *ChromemStore) Search(ctx context.Context, collection string, query string, k int) (hits []Hit, err error) {
	ctx, span := tracer.Start(ctx, "ChromemStore.Search")
	defer span.End()
	defer func(start time.Time) { recordOperation(backendChromem, "search", start, err) }(time.Now())

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

	c, err := s.collection(ctx, collection, false)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return []Hit{}, nil
	}

	// chromem requires nResults <= document count.
	count := c.Count()
	if count == 0 {
		return []Hit{}, nil
	}
	if k > count {
		k = count
	}

	results, err := c.Query(ctx, query, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	hits = make([]Hit, 0, len(results))
	for _, r := range results {
		h, err := decodeChromemResult(r)
		if err != nil {
			s.logger.Warn(ctx, "skipping undecodable document",
				zap.String("collection", collection),
				zap.String("id", r.ID),
				zap.Error(err),
			)
			continue
		}
		hits = append(hits, h)
	}

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

// Health implements Store.
func (s *ChromemStore) Health(_ context.Context) error {
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("chromem path: %w", err)
	}
	return nil
}

// Close implements Store. Writes are persisted as they happen.
func (s *ChromemStore) Close() error {
	return nil
}

func encodeChromemMetadata(r Record) (map[string]string, error) {
	md := r.Metadata
	if md == nil {
		md = map[string]any{}
	}
	raw, err := json.Marshal(markDoubles(md))
	if err != nil {
		return nil, fmt.Errorf("encoding metadata for %s: %w", r.ID, err)
	}
	out := map[string]string{chromemMetadataKey: string(raw)}
	if r.MemoryID != "" {
		out[chromemMemoryIDKey] = r.MemoryID
	}
	return out, nil
}

func decodeChromemResult(r chromem.Result) (Hit, error) {
	md := map[string]any{}
	if raw := r.Metadata[chromemMetadataKey]; raw != "" {
		dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
		dec.UseNumber()
		if err := dec.Decode(&md); err != nil {
			return Hit{}, err
		}
		md = normalizeNumbers(md).(map[string]any)
	}
	score := r.Similarity
	return Hit{
		ID:       r.ID,
		MemoryID: r.Metadata[chromemMemoryIDKey],
		Content:  r.Content,
		Metadata: md,
		Score:    &score,
	}, nil
}

// markDoubles copies v, writing every float as a json.Number that keeps a
// fraction or exponent, so 5.0 is not read back as the integer 5.
func markDoubles(v any) any {
	switch t := v.(type) {
	case float64:
		return doubleNumber(t)
	case float32:
		return doubleNumber(float64(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = markDoubles(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = markDoubles(e)
		}
		return out
	}
	return v
}

func doubleNumber(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		// left as-is so json.Marshal reports the unsupported value
		return f
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s)
}

// normalizeNumbers turns json.Number into int64 when it has no fraction or
// exponent and float64 otherwise. Together with markDoubles this gives the same
// Go types as the Qdrant integer and double payload values: integers come back
// as int64, floats as float64.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	}
	return v
}
