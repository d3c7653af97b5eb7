package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/events"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/vectorstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore records writes and returns canned hits.
type fakeStore struct {
	mu        sync.Mutex
	upserts   map[string][]vectorstore.Record
	hits      []vectorstore.Hit
	lastK     int
	lastColl  string
	upsertErr error
	searchErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{upserts: map[string][]vectorstore.Record{}}
}

func (f *fakeStore) Upsert(_ context.Context, collection string, records []vectorstore.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts[collection] = append(f.upserts[collection], records...)
	return nil
}

func (f *fakeStore) Search(_ context.Context, collection, _ string, k int) ([]vectorstore.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastK, f.lastColl = k, collection
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeStore) Health(context.Context) error { return nil }
func (f *fakeStore) Close() error                 { return nil }

// recordingPublisher keeps every event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func score(f float32) *float32 { return &f }

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 123456789, time.FixedZone("CET", 3600))

func newTestService(t *testing.T, store vectorstore.Store, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	svc, err := NewService(store, opts...)
	require.NoError(t, err)
	return svc
}

func TestNewService_RequiresStore(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)
}

func TestUpsert_Metadata(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)

	callerMD := map[string]any{"room": "garage"}
	res, err := svc.Upsert(context.Background(), UpsertRequest{
		Content:    "garage code is 4512",
		Collection: "home",
		Metadata:   callerMD,
	})
	require.NoError(t, err)

	assert.Equal(t, "success", res.Status)
	_, err = uuid.Parse(res.ID)
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{
		"room":            "garage",
		"timestamp":       "2024-03-09T13:05:07",
		"content":         "garage code is 4512",
		"collection_name": "home",
	}, res.Metadata)
	assert.Equal(t, map[string]any{"room": "garage"}, callerMD, "caller metadata must not be mutated")

	require.Len(t, store.upserts["home"], 1)
	rec := store.upserts["home"][0]
	assert.Equal(t, res.ID, rec.ID)
	assert.Empty(t, rec.MemoryID)
	assert.Equal(t, res.Metadata, rec.Metadata)
}

func TestUpsert_KeepsCallerTimestampAndOverridesReservedKeys(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)

	res, err := svc.Upsert(context.Background(), UpsertRequest{
		Content: "x",
		Metadata: map[string]any{
			"timestamp":       "1999-12-31T23:59:59",
			"content":         "stale",
			"collection_name": "elsewhere",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "1999-12-31T23:59:59", res.Metadata["timestamp"])
	assert.Equal(t, "x", res.Metadata["content"])
	assert.Equal(t, DefaultCollection, res.Metadata["collection_name"])
	assert.Len(t, store.upserts[DefaultCollection], 1)
}

func TestUpsert_IDs(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	a, err := svc.Upsert(ctx, UpsertRequest{Content: "one"})
	require.NoError(t, err)
	b, err := svc.Upsert(ctx, UpsertRequest{Content: "two"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	c, err := svc.Upsert(ctx, UpsertRequest{Content: "three", ID: "wifi-password"})
	require.NoError(t, err)
	assert.Equal(t, "wifi-password", c.ID)

	recs := store.upserts[DefaultCollection]
	require.Len(t, recs, 3)
	assert.Equal(t, vectorstore.PointID("wifi-password"), recs[2].ID)
	assert.Equal(t, "wifi-password", recs[2].MemoryID)
}

func TestUpsert_Errors(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)

	_, err := svc.Upsert(context.Background(), UpsertRequest{})
	assert.ErrorIs(t, err, ErrEmptyContent)

	store.upsertErr = vectorstore.ErrEmbeddingFailed
	_, err = svc.Upsert(context.Background(), UpsertRequest{Content: "x"})
	assert.ErrorIs(t, err, vectorstore.ErrEmbeddingFailed)
}

func TestQuery_SortsRoundsAndMapsIDs(t *testing.T) {
	store := newFakeStore()
	store.hits = []vectorstore.Hit{
		{ID: "p1", Content: "low", Score: score(0.123456)},
		{ID: "p2", Content: "unscored"},
		{ID: "p3", MemoryID: "kitchen", Content: "high", Score: score(0.98765)},
		{ID: "p4", Content: "tie-a", Score: score(0.5)},
		{ID: "p5", Content: "tie-b", Score: score(0.5)},
	}
	svc := newTestService(t, store)

	items, err := svc.Query(context.Background(), QueryRequest{Query: "anything"})
	require.NoError(t, err)
	require.Len(t, items, 5)

	assert.Equal(t, "unscored", items[0].Content)
	assert.Equal(t, 1.0, items[0].Score)
	assert.Equal(t, "kitchen", items[1].ID)
	assert.Equal(t, 0.9877, items[1].Score)
	assert.Equal(t, "tie-a", items[2].Content)
	assert.Equal(t, "tie-b", items[3].Content)
	assert.Equal(t, 0.1235, items[4].Score)
	assert.True(t, sort.SliceIsSorted(items, func(i, j int) bool { return items[i].Score > items[j].Score }))
}

func TestQuery_Defaults(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)

	_, err := svc.Query(context.Background(), QueryRequest{Query: "q", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, store.lastK)
	assert.Equal(t, DefaultCollection, store.lastColl)

	svc = newTestService(t, store, WithDefaults("notes", 7))
	_, err = svc.Query(context.Background(), QueryRequest{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, 7, store.lastK)
	assert.Equal(t, "notes", store.lastColl)

	_, err = svc.Query(context.Background(), QueryRequest{Query: "q", TopK: 2, Collection: "x"})
	require.NoError(t, err)
	assert.Equal(t, 2, store.lastK)
	assert.Equal(t, "x", store.lastColl)
}

func TestQuery_Errors(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)

	_, err := svc.Query(context.Background(), QueryRequest{})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	store.searchErr = errors.New("qdrant unavailable")
	_, err = svc.Query(context.Background(), QueryRequest{Query: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qdrant unavailable")
}

func TestStore_KeepsMetadataAsIs(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)

	md := map[string]any{"source": "chat"}
	require.NoError(t, svc.Store(context.Background(), Entry{Content: "hello", Metadata: md}, "notes"))

	require.Len(t, store.upserts["notes"], 1)
	assert.Equal(t, md, store.upserts["notes"][0].Metadata)

	assert.ErrorIs(t, svc.Store(context.Background(), Entry{}, "notes"), ErrEmptyContent)

	require.NoError(t, svc.Store(context.Background(), Entry{Content: "x"}, ""))
	assert.Len(t, store.upserts[DefaultCollection], 1)
}

func TestFind_UsesSearchLimit(t *testing.T) {
	store := newFakeStore()
	store.hits = []vectorstore.Hit{
		{Content: "b", Score: score(0.2)},
		{Content: "a", Score: score(0.9), Metadata: map[string]any{"k": "v"}},
	}
	svc := newTestService(t, store, WithSearchLimit(4))

	entries, err := svc.Find(context.Background(), "q", "notes", 0)
	require.NoError(t, err)
	assert.Equal(t, 4, store.lastK)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Content)
	assert.Equal(t, map[string]any{"k": "v"}, entries[0].Metadata)

	_, err = svc.Find(context.Background(), "q", "notes", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, store.lastK)

	_, err = svc.Find(context.Background(), "", "notes", 0)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestEventsPublished(t *testing.T) {
	store := newFakeStore()
	pub := &recordingPublisher{err: errors.New("nats down")}
	svc := newTestService(t, store, WithPublisher(pub))
	ctx := context.Background()

	res, err := svc.Upsert(ctx, UpsertRequest{Content: "x", Collection: "c"})
	require.NoError(t, err, "publish failures must not fail the write")
	_, err = svc.Query(ctx, QueryRequest{Query: "x", Collection: "c"})
	require.NoError(t, err)

	require.Len(t, pub.events, 2)
	assert.Equal(t, events.TypeStored, pub.events[0].Type)
	assert.Equal(t, res.ID, pub.events[0].MemoryID)
	assert.Equal(t, events.TypeQueried, pub.events[1].Type)
	assert.Equal(t, "x", pub.events[1].Query)
}
