package vectorstore

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Payload keys shared by every tool that reads or writes a collection.
const (
	PayloadDocument = "document"
	PayloadMetadata = "metadata"
	PayloadMemoryID = "memory_id"
)

// maxCollectionNameLen matches Qdrant's limit.
const maxCollectionNameLen = 255

// pointNamespace derives stable point ids from caller ids that are not UUIDs.
var pointNamespace = uuid.MustParse("5f6a0c2e-8d5b-4b8e-9a43-6a2d3c1e7b90")

// Record is a memory to be stored.
type Record struct {
	// ID is the point id. Non-UUID values are mapped through PointID.
	ID string

	// Content is the embedded text, stored as the "document" payload field.
	Content string

	// Metadata is stored verbatim under the "metadata" payload field.
	Metadata map[string]any

	// MemoryID is the caller-visible id, kept when it differs from the point id.
	MemoryID string
}

// Hit is a search result.
type Hit struct {
	ID       string
	MemoryID string
	Content  string
	Metadata map[string]any

	// Score is the similarity reported by the backend, nil when it reports none.
	Score *float32
}

// PointID returns id if it is already a UUID, otherwise a deterministic UUIDv5
// derived from it, so writing the same caller id twice replaces one point.
func PointID(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}

// ValidateCollectionName rejects names Qdrant would refuse.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if len(name) > maxCollectionNameLen {
		return fmt.Errorf("%w: collection name longer than %d bytes", ErrInvalidCollectionName, maxCollectionNameLen)
	}
	if strings.ContainsAny(name, "/\\\x00") || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// payloadFor builds the stored payload of r.
func payloadFor(r Record) map[string]any {
	payload := map[string]any{
		PayloadDocument: r.Content,
		PayloadMetadata: r.Metadata,
	}
	if r.Metadata == nil {
		payload[PayloadMetadata] = map[string]any{}
	}
	if r.MemoryID != "" {
		payload[PayloadMemoryID] = r.MemoryID
	}
	return payload
}

// hitFromPayload is the inverse of payloadFor.
func hitFromPayload(id string, payload map[string]any, score float32) Hit {
	h := Hit{ID: id, Score: &score, Metadata: map[string]any{}}
	if doc, ok := payload[PayloadDocument].(string); ok {
		h.Content = doc
	}
	if md, ok := payload[PayloadMetadata].(map[string]any); ok {
		h.Metadata = md
	}
	if mid, ok := payload[PayloadMemoryID].(string); ok {
		h.MemoryID = mid
	}
	return h
}
