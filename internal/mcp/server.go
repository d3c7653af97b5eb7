package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/config"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/logging"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/memory"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/vectorstore"
)

// Server serves the memory tools over MCP.
type Server struct {
	mcp          *mcp.Server
	memory       *memory.Service
	toolRegistry *ToolRegistry
	metrics      *Metrics
	logger       *logging.Logger
	cfg          Config
}

// Config configures the MCP server.
type Config struct {
	// Name is the implementation name reported to clients (default: "mcp-server-qdrant").
	Name string

	// Version is the implementation version (default: "dev").
	Version string

	Logger *logging.Logger

	// StoreDescription and FindDescription override the advertised descriptions
	// of the store and find tools.
	StoreDescription string
	FindDescription  string

	// PinnedCollection, when set, is used by store and find for every call and
	// their collection_name argument is removed.
	PinnedCollection string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:             "mcp-server-qdrant",
		Version:          "dev",
		Logger:           logging.NewNop(),
		StoreDescription: config.DefaultStoreDescription,
		FindDescription:  config.DefaultFindDescription,
	}
}

// NewServer creates an MCP server with all tools registered.
func NewServer(cfg *Config, memorySvc *memory.Service) (*Server, error) {
	if memorySvc == nil {
		return nil, fmt.Errorf("memory service is required")
	}

	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}
	c := *cfg
	if c.Name == "" {
		c.Name = defaults.Name
	}
	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Logger == nil {
		c.Logger = defaults.Logger
	}
	if c.StoreDescription == "" {
		c.StoreDescription = defaults.StoreDescription
	}
	if c.FindDescription == "" {
		c.FindDescription = defaults.FindDescription
	}
	if c.PinnedCollection != "" {
		if err := vectorstore.ValidateCollectionName(c.PinnedCollection); err != nil {
			return nil, fmt.Errorf("pinned collection: %w", err)
		}
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    c.Name,
			Version: c.Version,
		}, nil),
		memory:       memorySvc,
		toolRegistry: NewToolRegistry(),
		metrics:      NewMetrics(c.Logger.Underlying()),
		logger:       c.Logger,
		cfg:          c,
	}
	s.registerTools()

	s.logger.Info(context.Background(), "MCP tools registered",
		zap.Strings("tools", s.toolRegistry.ListNames()),
		zap.String("pinned_collection", c.PinnedCollection),
	)
	return s, nil
}

// MCP returns the underlying go-sdk server, for mounting HTTP handlers.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Tools returns the registry of exposed tools.
func (s *Server) Tools() *ToolRegistry {
	return s.toolRegistry
}

// Health reports whether the memory backend is reachable.
func (s *Server) Health(ctx context.Context) error {
	return s.memory.Health(ctx)
}

// Run serves a single session over t until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	s.logger.Info(ctx, "MCP server running", zap.String("transport", fmt.Sprintf("%T", t)))
	return s.mcp.Run(ctx, t)
}

// begin starts instrumentation for one tool call. The returned func must be
// called with the call's outcome.
func (s *Server) begin(ctx context.Context, req *mcp.CallToolRequest, tool string) (context.Context, func(error)) {
	start := time.Now()
	ctx = logging.WithToolName(ctx, tool)
	if req != nil && req.Session != nil {
		ctx = logging.WithSessionID(ctx, req.Session.ID())
	}
	s.metrics.IncrementActive(ctx, tool)

	return ctx, func(err error) {
		elapsed := time.Since(start)
		s.metrics.DecrementActive(ctx, tool)
		s.metrics.RecordInvocation(ctx, tool, elapsed, err)
		if err != nil {
			s.logger.Warn(ctx, "tool call failed", zap.Duration("duration", elapsed), zap.Error(err))
			return
		}
		s.logger.Debug(ctx, "tool call completed", zap.Duration("duration", elapsed))
	}
}
