package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/vectorstore"
)

func TestValidateTransport(t *testing.T) {
	for _, tr := range []string{"stdio", "sse", "streamable-http"} {
		assert.NoError(t, validateTransport(tr), tr)
	}
	for _, tr := range []string{"", "http", "STDIO", "websocket"} {
		assert.ErrorIs(t, validateTransport(tr), ErrInvalidTransport, tr)
	}
}

func TestRootCmd_InvalidTransport(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--transport", "carrier-pigeon"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.ErrorIs(t, err, ErrInvalidTransport)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestRootCmd_RejectsArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"extra"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	assert.Error(t, cmd.Execute())
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"version"})
	cmd.SetOut(&out)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "mcp-server-qdrant")
	assert.Contains(t, out.String(), "Version:    "+version)
}

// newFakeTEI serves /embed with bag-of-words hash vectors.
func newFakeTEI(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	emb := vectorstore.NewHashEmbedder(dim)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Inputs []string `json:"inputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		vecs, err := emb.EmbedDocuments(r.Context(), req.Inputs)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(vecs)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRun_StreamableHTTP(t *testing.T) {
	tei := newFakeTEI(t, 32)
	port := freePort(t)

	t.Setenv("EMBEDDING_PROVIDER", "tei")
	t.Setenv("EMBEDDING_MODEL", "test-model")
	t.Setenv("EMBEDDING_BASE_URL", tei.URL)
	t.Setenv("QDRANT_LOCAL_PATH", t.TempDir())
	t.Setenv("COLLECTION_NAME", "notes")
	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Setenv("SERVER_PORT", fmt.Sprint(port))
	t.Setenv("LOG_LEVEL", "error")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, options{transport: transportStreamableHTTP}) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 50*time.Millisecond)

	callCtx, callCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer callCancel()
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(callCtx, &sdkmcp.StreamableClientTransport{Endpoint: base + "/mcp"}, nil)
	require.NoError(t, err)

	res, err := cs.CallTool(callCtx, &sdkmcp.CallToolParams{
		Name:      "store",
		Arguments: map[string]any{"information": "the recycling goes out on tuesday"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	text := res.Content[0].(*sdkmcp.TextContent).Text
	assert.Equal(t, "Remembered: the recycling goes out on tuesday in collection notes", text)

	res, err = cs.CallTool(callCtx, &sdkmcp.CallToolParams{
		Name:      "find",
		Arguments: map[string]any{"query": "recycling day"},
	})
	require.NoError(t, err)
	require.Len(t, res.Content, 2)
	assert.True(t, strings.Contains(res.Content[1].(*sdkmcp.TextContent).Text, "recycling goes out on tuesday"))
	require.NoError(t, cs.Close())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "word2vec")
	t.Setenv("QDRANT_LOCAL_PATH", t.TempDir())

	err := run(context.Background(), options{transport: transportStdio})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading configuration")
}
