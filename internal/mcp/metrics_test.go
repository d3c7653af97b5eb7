package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/memory"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/vectorstore"
)

func newTestMetrics(t *testing.T) (*Metrics, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m := &Metrics{
		meter:  mp.Meter(instrumentationName),
		logger: zap.NewNop(),
	}
	m.init()
	return m, reader
}

// sumInt64 returns the total of an int64 sum metric, and whether it was found.
func sumInt64(t *testing.T, reader *metric.ManualReader, name string) (int64, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is %T", name, m.Data)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total, true
		}
	}
	return 0, false
}

func TestMetrics_RecordInvocation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordInvocation(ctx, ToolStore, 100*time.Millisecond, nil)
	m.RecordInvocation(ctx, ToolStore, 50*time.Millisecond, memory.ErrEmptyContent)

	total, ok := sumInt64(t, reader, "mcp_qdrant.mcp.tool.invocations_total")
	require.True(t, ok)
	assert.Equal(t, int64(2), total)

	errs, ok := sumInt64(t, reader, "mcp_qdrant.mcp.tool.errors_total")
	require.True(t, ok)
	assert.Equal(t, int64(1), errs)
}

func TestMetrics_ActiveRequests(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.IncrementActive(ctx, ToolFind)
	m.IncrementActive(ctx, ToolFind)
	m.DecrementActive(ctx, ToolFind)

	active, ok := sumInt64(t, reader, "mcp_qdrant.mcp.tool.active_requests")
	require.True(t, ok)
	assert.Equal(t, int64(1), active)
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, ""},
		{"empty content", memory.ErrEmptyContent, "validation_error"},
		{"wrapped bad collection", fmt.Errorf("storing: %w", vectorstore.ErrInvalidCollectionName), "validation_error"},
		{"embedding", fmt.Errorf("x: %w", vectorstore.ErrEmbeddingFailed), "embedding_error"},
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"canceled", context.Canceled, "canceled"},
		{"invalid input", errors.New("invalid top_k"), "validation_error"},
		{"unauthorized", errors.New("unauthorized access"), "auth_error"},
		{"storage", errors.New("querying memories: rpc unavailable"), "storage_error"},
		{"generic error", errors.New("something went wrong"), "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, categorizeError(tt.err))
		})
	}
}
