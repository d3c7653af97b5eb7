// Package events publishes memory activity to NATS.
//
// Every stored memory and every query produces one event on the subject
//
//	{prefix}.{collection}.{type}
//
// where type is "stored" or "queried". Subscribers can watch a single collection
// with "memory.default.*" or everything with "memory.>".
package events

import (
	"context"
	"strings"
	"time"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/logging"
	"go.opentelemetry.io/otel/trace"
)

// Event types.
const (
	TypeStored  = "stored"
	TypeQueried = "queried"
)

// Event describes one memory operation. Content is never included.
type Event struct {
	Type       string    `json:"type"`
	Collection string    `json:"collection"`
	Tool       string    `json:"tool,omitempty"`
	MemoryID   string    `json:"memory_id,omitempty"`
	Query      string    `json:"query,omitempty"`
	Results    int       `json:"results"`
	SessionID  string    `json:"session_id,omitempty"`
	TraceID    string    `json:"trace_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher emits memory events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// enrich fills the context-derived fields of e.
func enrich(ctx context.Context, e Event) Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Tool == "" {
		e.Tool = logging.ToolNameFromContext(ctx)
	}
	if e.SessionID == "" {
		e.SessionID = logging.SessionIDFromContext(ctx)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		e.TraceID = sc.TraceID().String()
	}
	return e
}

// subjectToken makes s usable as a single NATS subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// NopPublisher drops every event. It is used when NATS is not configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
