// Package mcp exposes the memory service as MCP tools.
//
// Four tools are registered on a go-sdk server:
//
//   - store and find, whose descriptions are configurable and whose
//     collection_name argument disappears when a collection is pinned
//   - memory_upsert and memory_query, the long-term memory tools, which report
//     failures as "Error: ..." text instead of tool errors
//
// Every call is counted and timed through OpenTelemetry metrics.
package mcp
