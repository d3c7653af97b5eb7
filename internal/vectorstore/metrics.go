package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts store operations.
	// Labels: backend (qdrant, chromem), operation (upsert, search), result (success, error)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp_qdrant",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Total number of vector store operations",
		},
		[]string{"backend", "operation", "result"},
	)

	// OperationDuration tracks how long store operations take, embedding included.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcp_qdrant",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// RecordsWritten counts upserted records.
	RecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp_qdrant",
			Subsystem: "vectorstore",
			Name:      "records_written_total",
			Help:      "Total number of records upserted",
		},
		[]string{"backend"},
	)

	// CollectionsCreated counts collections auto-created on first write.
	CollectionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp_qdrant",
			Subsystem: "vectorstore",
			Name:      "collections_created_total",
			Help:      "Total number of collections created on first write",
		},
		[]string{"backend"},
	)
)

// recordOperation records the outcome of one store operation.
func recordOperation(backend, operation string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	OperationsTotal.WithLabelValues(backend, operation, result).Inc()
	OperationDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
}
