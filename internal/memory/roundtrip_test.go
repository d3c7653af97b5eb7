package memory_test

import (
	"context"
	"sort"
	"testing"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/memory"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/telemetry"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalService(t *testing.T) *memory.Service {
	t.Helper()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Path: t.TempDir()}, vectorstore.NewHashEmbedder(64), nil)
	require.NoError(t, err)
	svc, err := memory.NewService(store)
	require.NoError(t, err)
	return svc
}

func TestRoundTrip_StoreThenQuery(t *testing.T) {
	svc := newLocalService(t)
	ctx := context.Background()

	for _, fact := range []string{
		"the garage door code is 4512",
		"the living room speaker is a sonos one",
		"trash pickup is every tuesday morning",
		"the wifi network is called attic",
	} {
		_, err := svc.Upsert(ctx, memory.UpsertRequest{Content: fact})
		require.NoError(t, err)
	}

	items, err := svc.Query(ctx, memory.QueryRequest{Query: "garage door code", TopK: 4})
	require.NoError(t, err)
	require.NotEmpty(t, items)
	assert.Equal(t, "the garage door code is 4512", items[0].Content)
	assert.True(t, sort.SliceIsSorted(items, func(i, j int) bool { return items[i].Score > items[j].Score }))
}

func TestRoundTrip_ExplicitIDOverwrites(t *testing.T) {
	svc := newLocalService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, memory.UpsertRequest{ID: "thermostat", Content: "thermostat is set to 19 degrees"})
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, memory.UpsertRequest{ID: "thermostat", Content: "thermostat is set to 21 degrees"})
	require.NoError(t, err)

	items, err := svc.Query(ctx, memory.QueryRequest{Query: "thermostat", TopK: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "thermostat", items[0].ID)
	assert.Equal(t, "thermostat is set to 21 degrees", items[0].Content)
}

func TestRoundTrip_MetadataPreserved(t *testing.T) {
	svc := newLocalService(t)
	ctx := context.Background()

	res, err := svc.Upsert(ctx, memory.UpsertRequest{
		Content:    "porch light turns on at sunset",
		Collection: "automations",
		Metadata:   map[string]any{"area": "porch", "priority": int64(2)},
	})
	require.NoError(t, err)

	items, err := svc.Query(ctx, memory.QueryRequest{Query: "porch light", Collection: "automations"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, res.Metadata, items[0].Metadata)
	assert.Equal(t, "automations", items[0].Metadata["collection_name"])
	assert.Equal(t, "porch", items[0].Metadata["area"])
}

func TestRoundTrip_EmptyCollection(t *testing.T) {
	svc := newLocalService(t)

	items, err := svc.Query(context.Background(), memory.QueryRequest{Query: "anything", Collection: "empty"})
	require.NoError(t, err)
	assert.Empty(t, items)

	entries, err := svc.Find(context.Background(), "anything", "empty", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRoundTrip_Spans(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	tt.Install(t)

	svc := newLocalService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, memory.UpsertRequest{Content: "the boiler was serviced in march", Collection: "house"})
	require.NoError(t, err)
	_, err = svc.Query(ctx, memory.QueryRequest{Query: "boiler", TopK: 2, Collection: "house"})
	require.NoError(t, err)

	tt.AssertSpanAttribute(t, "memory.Upsert", "collection", "house")
	tt.AssertSpanAttribute(t, "memory.Query", "top_k", int64(2))
	tt.AssertSpanAttribute(t, "ChromemStore.Upsert", "record_count", int64(1))

	parent := tt.SpanByName("memory.Upsert")
	child := tt.SpanByName("ChromemStore.Upsert")
	require.NotNil(t, parent)
	require.NotNil(t, child)
	assert.Equal(t, parent.SpanContext().SpanID(), child.Parent().SpanID())
}
