// Package http serves MCP over HTTP using echo.
//
// Depending on the transport, the MCP endpoint is mounted at /sse (the legacy
// SSE transport) or /mcp (streamable HTTP). /health and /metrics are always
// available.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/logging"
	"github.com/fyrsmithlabs/mcp-server-qdrant/internal/mcp"
)

// Transport names an HTTP MCP transport.
type Transport string

const (
	TransportSSE            Transport = "sse"
	TransportStreamableHTTP Transport = "streamable-http"
)

// Endpoint paths.
const (
	PathSSE        = "/sse"
	PathStreamable = "/mcp"
	PathHealth     = "/health"
	PathMetrics    = "/metrics"
)

const healthTimeout = 5 * time.Second

// ErrUnsupportedTransport is returned for transports that are not served over HTTP.
var ErrUnsupportedTransport = errors.New("unsupported http transport")

// Server serves an MCP server over HTTP.
type Server struct {
	echo    *echo.Echo
	mcp     *mcp.Server
	logger  *logging.Logger
	config  *Config
	metrics *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host      string
	Port      int
	Transport Transport

	// ShutdownTimeout bounds graceful shutdown once the run context is done.
	ShutdownTimeout time.Duration
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewServer creates an HTTP server for mcpServer.
func NewServer(mcpServer *mcp.Server, logger *logging.Logger, cfg *Config) (*Server, error) {
	if mcpServer == nil {
		return nil, fmt.Errorf("mcp server cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg == nil {
		cfg = &Config{
			Host:      "0.0.0.0",
			Port:      8000,
			Transport: TransportStreamableHTTP,
		}
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Transport != TransportSSE && cfg.Transport != TransportStreamableHTTP {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTransport, cfg.Transport)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		mcp:     mcpServer,
		logger:  logger,
		config:  cfg,
		metrics: NewHTTPMetrics(logger.Underlying()),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.metrics.MetricsMiddleware())
	e.Use(s.requestLogger)

	s.registerRoutes()
	return s, nil
}

// requestLogger logs every request once it completes and carries the request
// id in the request context.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		req := c.Request()
		c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), requestID)))

		err := next(c)

		s.logger.Info(c.Request().Context(), "http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET(PathHealth, s.handleHealth)
	s.echo.GET(PathMetrics, echo.WrapHandler(promhttp.Handler()))

	getServer := func(*http.Request) *sdkmcp.Server { return s.mcp.MCP() }

	switch s.config.Transport {
	case TransportSSE:
		s.echo.Any(PathSSE, echo.WrapHandler(sdkmcp.NewSSEHandler(getServer, nil)))
	case TransportStreamableHTTP:
		s.echo.Any(PathStreamable, echo.WrapHandler(sdkmcp.NewStreamableHTTPHandler(getServer, nil)))
	}
}

// MCPPath returns the path the MCP endpoint is mounted at.
func (s *Server) MCPPath() string {
	if s.config.Transport == TransportSSE {
		return PathSSE
	}
	return PathStreamable
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "ok",
		Transport: string(s.config.Transport),
		Store:     "ok",
		Tools:     s.mcp.Tools().ListNames(),
	}
	code := http.StatusOK
	if err := s.mcp.Health(ctx); err != nil {
		s.logger.Warn(ctx, "health check failed", zap.Error(err))
		resp.Status = "degraded"
		resp.Store = err.Error()
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}

// Start serves until ctx is done, then shuts down gracefully. It returns nil
// after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Addr()
	errCh := make(chan error, 1)

	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	s.logger.Info(ctx, "http server listening",
		zap.String("addr", addr),
		zap.String("transport", string(s.config.Transport)),
		zap.String("mcp_path", s.MCPPath()),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully stops the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "shutting down http server")
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
