package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/memory"
)

// Tool names.
const (
	ToolStore        = "store"
	ToolFind         = "find"
	ToolMemoryUpsert = "memory_upsert"
	ToolMemoryQuery  = "memory_query"
)

const (
	memoryQueryDescription = "Retrieve facts, notes, or memories previously taught to the assistant in conversations or explicit requests. " +
		"Not for real-time sensor or device state (use the entity API for that). " +
		"Example: Find out when the user last watered the plants, or what birthday message was set last month. " +
		"For current sensor or device values, use the Home Assistant entity API/tool, not this memory tool."

	memoryUpsertDescription = "Store a new fact, event, or personal note for long-term memory. " +
		"Use for anything you want the assistant to remember in future conversations. " +
		"Not for real-time sensor/device values! " +
		"For current sensor or device values, use the Home Assistant entity API/tool, not this memory tool."
)

type storeInput struct {
	Information    string         `json:"information" jsonschema:"The information to store"`
	CollectionName string         `json:"collection_name" jsonschema:"The collection to store the information in"`
	Metadata       map[string]any `json:"metadata,omitempty" jsonschema:"Extra metadata stored along with memorised information. Any json is accepted."`
}

type pinnedStoreInput struct {
	Information string         `json:"information" jsonschema:"The information to store"`
	Metadata    map[string]any `json:"metadata,omitempty" jsonschema:"Extra metadata stored along with memorised information. Any json is accepted."`
}

type findInput struct {
	Query          string `json:"query" jsonschema:"What to search for"`
	CollectionName string `json:"collection_name" jsonschema:"The collection to search in"`
}

type pinnedFindInput struct {
	Query string `json:"query" jsonschema:"What to search for"`
}

type memoryUpsertInput struct {
	Content        string         `json:"content" jsonschema:"The text to remember"`
	CollectionName string         `json:"collection_name,omitempty" jsonschema:"Collection to store in (default: default)"`
	Metadata       map[string]any `json:"metadata,omitempty" jsonschema:"Extra metadata stored with the memory"`
	ID             string         `json:"id,omitempty" jsonschema:"Stable id; storing the same id again replaces the memory"`
}

type memoryQueryInput struct {
	Query          string `json:"query" jsonschema:"What to search for"`
	TopK           int    `json:"top_k,omitempty" jsonschema:"Maximum number of results (default: 3)"`
	CollectionName string `json:"collection_name,omitempty" jsonschema:"Collection to search (default: default)"`
	UserID         string `json:"user_id,omitempty" jsonschema:"Id of the user asking"`
}

func (s *Server) registerTools() {
	s.registerStore()
	s.registerFind()
	s.registerMemoryUpsert()
	s.registerMemoryQuery()
}

func (s *Server) registerStore() {
	tool := &mcp.Tool{Name: ToolStore, Description: s.cfg.StoreDescription}

	if pinned := s.cfg.PinnedCollection; pinned != "" {
		mcp.AddTool(s.mcp, tool, func(ctx context.Context, req *mcp.CallToolRequest, args pinnedStoreInput) (*mcp.CallToolResult, any, error) {
			return s.handleStore(ctx, req, args.Information, pinned, args.Metadata)
		})
	} else {
		mcp.AddTool(s.mcp, tool, func(ctx context.Context, req *mcp.CallToolRequest, args storeInput) (*mcp.CallToolResult, any, error) {
			return s.handleStore(ctx, req, args.Information, args.CollectionName, args.Metadata)
		})
	}

	s.toolRegistry.Register(&ToolMetadata{
		Name:        ToolStore,
		Description: s.cfg.StoreDescription,
		Category:    CategoryMemory,
		Keywords:    []string{"remember", "save", "write"},
	})
}

func (s *Server) registerFind() {
	tool := &mcp.Tool{Name: ToolFind, Description: s.cfg.FindDescription}

	if pinned := s.cfg.PinnedCollection; pinned != "" {
		mcp.AddTool(s.mcp, tool, func(ctx context.Context, req *mcp.CallToolRequest, args pinnedFindInput) (*mcp.CallToolResult, any, error) {
			return s.handleFind(ctx, req, args.Query, pinned)
		})
	} else {
		mcp.AddTool(s.mcp, tool, func(ctx context.Context, req *mcp.CallToolRequest, args findInput) (*mcp.CallToolResult, any, error) {
			return s.handleFind(ctx, req, args.Query, args.CollectionName)
		})
	}

	s.toolRegistry.Register(&ToolMetadata{
		Name:        ToolFind,
		Description: s.cfg.FindDescription,
		Category:    CategoryMemory,
		Keywords:    []string{"search", "recall", "lookup"},
	})
}

func (s *Server) handleStore(ctx context.Context, req *mcp.CallToolRequest, information, collection string, metadata map[string]any) (_ *mcp.CallToolResult, _ any, err error) {
	ctx, done := s.begin(ctx, req, ToolStore)
	defer func() { done(err) }()

	if err = s.memory.Store(ctx, memory.Entry{Content: information, Metadata: metadata}, collection); err != nil {
		return nil, nil, err
	}

	msg := "Remembered: " + information
	if collection != "" {
		msg += " in collection " + collection
	}
	return textResult(msg), nil, nil
}

func (s *Server) handleFind(ctx context.Context, req *mcp.CallToolRequest, query, collection string) (_ *mcp.CallToolResult, _ any, err error) {
	ctx, done := s.begin(ctx, req, ToolFind)
	defer func() { done(err) }()

	entries, err := s.memory.Find(ctx, query, collection, 0)
	if err != nil {
		return nil, nil, err
	}
	if len(entries) == 0 {
		return textResult(noResults(query)), nil, nil
	}

	content := make([]mcp.Content, 0, len(entries)+1)
	content = append(content, &mcp.TextContent{Text: fmt.Sprintf("Results for the query '%s'", query)})
	for _, e := range entries {
		content = append(content, &mcp.TextContent{Text: memory.FormatEntry(e)})
	}
	return &mcp.CallToolResult{Content: content}, nil, nil
}

func (s *Server) registerMemoryUpsert() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolMemoryUpsert,
		Description: memoryUpsertDescription,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args memoryUpsertInput) (*mcp.CallToolResult, any, error) {
		ctx, done := s.begin(ctx, req, ToolMemoryUpsert)

		res, err := s.memory.Upsert(ctx, memory.UpsertRequest{
			Content:    args.Content,
			Collection: args.CollectionName,
			Metadata:   args.Metadata,
			ID:         args.ID,
		})
		done(err)
		if err != nil {
			return textResult("Error: " + err.Error()), nil, nil
		}

		entry := memory.FormatEntry(memory.Entry{Content: args.Content, Metadata: res.Metadata})
		return textResult(fmt.Sprintf("Successfully stored in collection '%s': %s", res.Collection, entry)), nil, nil
	})

	s.toolRegistry.Register(&ToolMetadata{
		Name:        ToolMemoryUpsert,
		Description: memoryUpsertDescription,
		Category:    CategoryLegacy,
		Keywords:    []string{"remember", "note", "fact"},
	})
}

func (s *Server) registerMemoryQuery() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolMemoryQuery,
		Description: memoryQueryDescription,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args memoryQueryInput) (*mcp.CallToolResult, any, error) {
		ctx, done := s.begin(ctx, req, ToolMemoryQuery)

		items, err := s.memory.Query(ctx, memory.QueryRequest{
			Query:      args.Query,
			TopK:       args.TopK,
			Collection: args.CollectionName,
			UserID:     args.UserID,
		})
		done(err)
		if err != nil {
			return textResult("Error: " + err.Error()), nil, nil
		}
		if len(items) == 0 {
			return textResult(noResults(args.Query)), nil, nil
		}

		lines := make([]string, len(items))
		for i, item := range items {
			lines[i] = memory.FormatEntry(memory.Entry{Content: item.Content, Metadata: item.Metadata, Score: item.Score})
		}
		return textResult(fmt.Sprintf("Results for the query '%s':\n", args.Query) + strings.Join(lines, "\n")), nil, nil
	})

	s.toolRegistry.Register(&ToolMetadata{
		Name:        ToolMemoryQuery,
		Description: memoryQueryDescription,
		Category:    CategoryLegacy,
		Keywords:    []string{"recall", "search", "history"},
	})
}

func noResults(query string) string {
	return fmt.Sprintf("No information found for the query '%s'", query)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
