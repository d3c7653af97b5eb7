// Package vectorstore stores memories as embedded records and answers
// similarity queries over them.
//
// Two backends implement Store:
//
//   - QdrantStore talks to a Qdrant server through internal/qdrant. Collections
//     are created on first write with the embedder's dimension and cosine distance.
//   - ChromemStore keeps collections in an embedded chromem-go database persisted
//     to a local directory.
//
// Both use the same record layout, so a collection written by one tool reads the
// same through every other:
//
//	{
//	  "document":  "<content>",
//	  "metadata":  { ... },
//	  "memory_id": "<caller id, when it is not a UUID>"
//	}
//
// # Usage
//
//	store, err := vectorstore.NewStore(ctx, cfg, embedder, embedder.Dimension(), logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.Upsert(ctx, "default", []vectorstore.Record{{
//	    ID:       uuid.NewString(),
//	    Content:  "the garage code is 4512",
//	    Metadata: map[string]any{"source": "chat"},
//	}})
//
//	hits, err := store.Search(ctx, "default", "garage", 3)
//
// # Metrics
//
// Operation counts and latencies are exported as Prometheus metrics under the
// mcp_qdrant_vectorstore_ prefix; spans are emitted through the global
// OpenTelemetry tracer.
package vectorstore
