// Package memory is the store/query facade behind the MCP tools.
//
// Service turns free-text facts into vectorstore records and back:
//
//   - Upsert and Query back the memory_upsert and memory_query tools. Upsert
//     stamps metadata with timestamp, content and collection_name; Query returns
//     scored items sorted by descending score.
//   - Store and Find back the store and find tools. They keep the caller's
//     metadata untouched.
//
// The Service holds no state of its own beyond its injected store and event
// publisher; records belong to the store once written.
package memory
