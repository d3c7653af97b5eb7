// Package qdrant wraps the official Qdrant gRPC client with retries, timeouts and
// payload conversion for the memory store.
package qdrant

import (
	"context"
)

// Client is the subset of Qdrant used by the vector store.
type Client interface {
	CreateCollection(ctx context.Context, name string, vectorSize uint64) error
	CollectionExists(ctx context.Context, name string) (bool, error)

	Upsert(ctx context.Context, collection string, points []*Point) error
	Search(ctx context.Context, collection string, vector []float32, limit uint64) ([]*ScoredPoint, error)

	Health(ctx context.Context) error
	Close() error
}

// Point is a vector with its payload. ID must be a UUID.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	ID      string
	Payload map[string]any
	Score   float32
}
