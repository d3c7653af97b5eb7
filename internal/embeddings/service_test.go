package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTEIServer fakes a TEI /embed endpoint that returns dim-sized vectors whose
// first component is the input's length.
func newTEIServer(t *testing.T, dim int, wantAuth string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/embed" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if wantAuth != "" && r.Header.Get("Authorization") != "Bearer "+wantAuth {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req teiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := make([][]float32, len(req.Inputs))
		for i, in := range req.Inputs {
			out[i] = make([]float32, dim)
			out[i][0] = float32(len(in))
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "valid", cfg: Config{BaseURL: "http://localhost:8080"}},
		{name: "missing base url", cfg: Config{}, wantErr: "base URL required"},
		{name: "bad scheme", cfg: Config{BaseURL: "localhost:8080"}, wantErr: "must start with http"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestService_EmbedDocuments(t *testing.T) {
	srv, _ := newTEIServer(t, 4, "")
	svc, err := NewService(Config{BaseURL: srv.URL + "/", Model: "BAAI/bge-small-en-v1.5"})
	require.NoError(t, err)

	vecs, err := svc.EmbedDocuments(context.Background(), []string{"a", "abc"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], 4)
	assert.Equal(t, float32(1), vecs[0][0])
	assert.Equal(t, float32(3), vecs[1][0])

	_, err = svc.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestService_EmbedQuery(t *testing.T) {
	srv, _ := newTEIServer(t, 3, "tei-secret")

	svc, err := NewService(Config{BaseURL: srv.URL, APIKey: "tei-secret"})
	require.NoError(t, err)

	vec, err := svc.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 0, 0}, vec)

	_, err = svc.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)

	t.Run("wrong key surfaces the status", func(t *testing.T) {
		bad, err := NewService(Config{BaseURL: srv.URL, APIKey: "nope"})
		require.NoError(t, err)
		_, err = bad.EmbedQuery(context.Background(), "hello")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
		assert.Contains(t, err.Error(), "status 401")
	})
}

func TestService_MalformedResponses(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "not json", body: "<html>", wantErr: "decoding response"},
		{name: "vector count mismatch", body: "[[0.1]]", wantErr: "got 1 vectors for 2 texts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			svc, err := NewService(Config{BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = svc.EmbedDocuments(context.Background(), []string{"a", "b"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrEmbeddingFailed)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestService_ContextCanceled(t *testing.T) {
	srv, _ := newTEIServer(t, 3, "")
	svc, err := NewService(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = svc.EmbedQuery(ctx, "hello")
	require.Error(t, err)
}
