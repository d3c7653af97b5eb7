package vectorstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/logging"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/qdrant"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/vectorstore"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// fakeClient is an in-memory qdrant.Client.
type fakeClient struct {
	mu          sync.Mutex
	collections map[string]uint64
	points      map[string][]*qdrant.Point
	creates     int
	existsCalls int

	searchErr error
	healthErr error
	closed    bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		collections: map[string]uint64{},
		points:      map[string][]*qdrant.Point{},
	}
}

func (f *fakeClient) CreateCollection(_ context.Context, name string, size uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.collections[name] = size
	return nil
}

func (f *fakeClient) CollectionExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls++
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeClient) Upsert(_ context.Context, collection string, points []*qdrant.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range points {
		replaced := false
		for i, existing := range f.points[collection] {
			if existing.ID == p.ID {
				f.points[collection][i] = p
				replaced = true
			}
		}
		if !replaced {
			f.points[collection] = append(f.points[collection], p)
		}
	}
	return nil
}

// Search scores by dot product and returns the top limit points.
func (f *fakeClient) Search(_ context.Context, collection string, vector []float32, limit uint64) ([]*qdrant.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []*qdrant.ScoredPoint
	for _, p := range f.points[collection] {
		var score float32
		for i := range vector {
			score += vector[i] * p.Vector[i]
		}
		out = append(out, &qdrant.ScoredPoint{ID: p.ID, Payload: p.Payload, Score: score})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Score > out[j-1].Score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if uint64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeClient) Health(context.Context) error { return f.healthErr }

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func newTestQdrantStore(t *testing.T) (*vectorstore.QdrantStore, *fakeClient, *logging.TestLogger) {
	t.Helper()
	client := newFakeClient()
	tl := logging.NewTestLogger()
	store, err := vectorstore.NewQdrantStore(client, vectorstore.NewHashEmbedder(64), 64, tl.Logger)
	require.NoError(t, err)
	return store, client, tl
}

func TestNewQdrantStore_Validation(t *testing.T) {
	emb := vectorstore.NewHashEmbedder(8)
	tests := []struct {
		name     string
		client   qdrant.Client
		embedder vectorstore.Embedder
		size     int
	}{
		{name: "nil client", embedder: emb, size: 8},
		{name: "nil embedder", client: newFakeClient(), size: 8},
		{name: "zero size", client: newFakeClient(), embedder: emb},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := vectorstore.NewQdrantStore(tt.client, tt.embedder, tt.size, nil)
			assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
		})
	}
}

func TestQdrantStore_AutoCreatesCollectionOnce(t *testing.T) {
	store, client, tl := newTestQdrantStore(t)
	ctx := context.Background()
	before := testutil.ToFloat64(vectorstore.CollectionsCreated.WithLabelValues("qdrant"))

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Upsert(ctx, "default", []vectorstore.Record{{ID: uuid.NewString(), Content: "fact"}}))
	}

	assert.Equal(t, 1, client.creates)
	assert.Equal(t, uint64(64), client.collections["default"])
	assert.Equal(t, before+1, testutil.ToFloat64(vectorstore.CollectionsCreated.WithLabelValues("qdrant")))
	tl.AssertLogged(t, zapcore.InfoLevel, "created collection")
}

func TestQdrantStore_ConcurrentFirstWrites(t *testing.T) {
	store, client, _ := newTestQdrantStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Upsert(ctx, "race", []vectorstore.Record{{ID: uuid.NewString(), Content: "parallel"}}))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, client.creates)
	assert.Len(t, client.points["race"], 10)
}

func TestQdrantStore_PayloadLayout(t *testing.T) {
	store, client, _ := newTestQdrantStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "layout", []vectorstore.Record{{
		ID:       "kitchen-light",
		MemoryID: "kitchen-light",
		Content:  "kitchen light is on circuit 4",
		Metadata: map[string]any{"room": "kitchen"},
	}}))

	require.Len(t, client.points["layout"], 1)
	p := client.points["layout"][0]
	_, err := uuid.Parse(p.ID)
	assert.NoError(t, err)
	assert.Equal(t, vectorstore.PointID("kitchen-light"), p.ID)
	assert.Equal(t, "kitchen light is on circuit 4", p.Payload[vectorstore.PayloadDocument])
	assert.Equal(t, map[string]any{"room": "kitchen"}, p.Payload[vectorstore.PayloadMetadata])
	assert.Equal(t, "kitchen-light", p.Payload[vectorstore.PayloadMemoryID])
}

func TestQdrantStore_Search(t *testing.T) {
	store, _, _ := newTestQdrantStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "home", []vectorstore.Record{
		{ID: uuid.NewString(), Content: "the garage door code is 4512"},
		{ID: uuid.NewString(), Content: "the kitchen light is a hue bulb"},
	}))

	hits, err := store.Search(ctx, "home", "garage code", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "the garage door code is 4512", hits[0].Content)
	require.NotNil(t, hits[0].Score)
	require.NotNil(t, hits[1].Score)
	assert.GreaterOrEqual(t, *hits[0].Score, *hits[1].Score)
	assert.NotNil(t, hits[1].Metadata)
}

func TestQdrantStore_SearchMissingCollection(t *testing.T) {
	store, client, _ := newTestQdrantStore(t)

	hits, err := store.Search(context.Background(), "absent", "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, 0, client.creates)
}

func TestQdrantStore_Errors(t *testing.T) {
	store, client, _ := newTestQdrantStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.Upsert(ctx, "c", nil), vectorstore.ErrEmptyRecords)
	assert.ErrorIs(t, store.Upsert(ctx, "a/b", []vectorstore.Record{{Content: "x"}}), vectorstore.ErrInvalidCollectionName)

	_, err := store.Search(ctx, "c", "", 3)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyQuery)

	require.NoError(t, store.Upsert(ctx, "c", []vectorstore.Record{{ID: uuid.NewString(), Content: "x"}}))
	client.searchErr = errors.New("unavailable")
	_, err = store.Search(ctx, "c", "x", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
}

func TestQdrantStore_EmbeddingFailureCreatesNothing(t *testing.T) {
	client := newFakeClient()
	emb := vectorstore.NewHashEmbedder(8)
	emb.Err = errors.New("quota exceeded")
	store, err := vectorstore.NewQdrantStore(client, emb, 8, nil)
	require.NoError(t, err)

	err = store.Upsert(context.Background(), "c", []vectorstore.Record{{ID: uuid.NewString(), Content: "x"}})
	assert.ErrorIs(t, err, vectorstore.ErrEmbeddingFailed)
	assert.Equal(t, 0, client.creates)
}

func TestQdrantStore_HealthAndClose(t *testing.T) {
	store, client, _ := newTestQdrantStore(t)

	assert.NoError(t, store.Health(context.Background()))
	client.healthErr = errors.New("down")
	assert.Error(t, store.Health(context.Background()))

	require.NoError(t, store.Close())
	assert.True(t, client.closed)
}
