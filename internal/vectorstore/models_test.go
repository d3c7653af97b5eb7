package vectorstore

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointID(t *testing.T) {
	id := uuid.NewString()
	assert.Equal(t, id, PointID(id))
	assert.Equal(t, strings.ToLower(id), PointID(strings.ToUpper(id)))

	derived := PointID("kitchen-light")
	_, err := uuid.Parse(derived)
	require.NoError(t, err)
	assert.Equal(t, derived, PointID("kitchen-light"))
	assert.NotEqual(t, derived, PointID("kitchen-light-2"))
}

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "default", input: "default"},
		{name: "mixed case and dashes", input: "Home-Assistant_2"},
		{name: "spaces", input: "my notes"},
		{name: "empty", input: "", wantErr: true},
		{name: "slash", input: "../etc", wantErr: true},
		{name: "dot dot", input: "..", wantErr: true},
		{name: "too long", input: strings.Repeat("a", 256), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCollectionName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	r := Record{ID: "x", Content: "hello", Metadata: map[string]any{"k": "v"}, MemoryID: "x"}
	h := hitFromPayload("p1", payloadFor(r), 0.5)

	assert.Equal(t, "p1", h.ID)
	assert.Equal(t, "hello", h.Content)
	assert.Equal(t, "x", h.MemoryID)
	assert.Equal(t, r.Metadata, h.Metadata)
	require.NotNil(t, h.Score)
	assert.Equal(t, float32(0.5), *h.Score)

	empty := payloadFor(Record{Content: "bare"})
	assert.Equal(t, map[string]any{}, empty[PayloadMetadata])
	assert.NotContains(t, empty, PayloadMemoryID)
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(16)
	ctx := context.Background()

	a, err := e.EmbedQuery(ctx, "garage door")
	require.NoError(t, err)
	b, err := e.EmbedQuery(ctx, "Garage, door!")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	var norm float32
	for _, x := range a {
		norm += x * x
	}
	assert.InDelta(t, 1.0, norm, 1e-5)

	vecs, err := e.EmbedDocuments(ctx, []string{"one", "two"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, int64(4), e.Calls())
}
