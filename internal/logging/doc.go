// Package logging provides structured logging for mcp-server-qdrant.
//
// Logger wraps Zap with:
//   - a custom Trace level (-2, below Debug)
//   - a console stream (stderr by default) plus optional OpenTelemetry output
//   - context field injection (trace_id, session.id, request.id, mcp.tool)
//   - redaction of secret-looking fields and values
//   - per-level sampling; Error and above are never sampled
//
// The console stream defaults to stderr because the stdio transport owns stdout:
// anything else written there corrupts the JSON-RPC stream.
//
// Usage:
//
//	cfg, err := logging.ConfigFromSettings(appCfg.Logging.Level, appCfg.Logging.Format)
//	logger, err := logging.NewLogger(cfg, nil)
//	defer logger.Sync()
//
//	ctx = logging.WithToolName(ctx, "memory_query")
//	logger.Info(ctx, "query served", zap.Int("hits", n))
//
// In tests use NewTestLogger and its Assert helpers.
package logging
