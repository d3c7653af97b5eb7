package memory

import "errors"

var (
	// ErrEmptyContent indicates an empty memory.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyQuery indicates an empty query.
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// Metadata keys written by Upsert.
const (
	MetadataTimestamp  = "timestamp"
	MetadataContent    = "content"
	MetadataCollection = "collection_name"
)

// TimestampFormat is UTC ISO-8601 without fractional seconds.
const TimestampFormat = "2006-01-02T15:04:05"

// Entry is a piece of information with optional metadata.
type Entry struct {
	Content  string
	Metadata map[string]any

	// Score is set on entries returned by Find.
	Score float64
}

// UpsertRequest is the input of Upsert.
type UpsertRequest struct {
	Content    string
	Collection string
	Metadata   map[string]any
	// ID is optional; a UUIDv4 is generated when empty.
	ID string
}

// UpsertResult is the outcome of Upsert.
type UpsertResult struct {
	Status     string         `json:"status"`
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Metadata   map[string]any `json:"metadata"`
}

// QueryRequest is the input of Query.
type QueryRequest struct {
	Query      string
	TopK       int
	Collection string
	// UserID is logged but not applied as a filter.
	UserID string
}

// Item is one Query result.
type Item struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}
