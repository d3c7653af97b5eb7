package mcp

import (
	"sort"
	"strings"
	"sync"
)

// ToolCategory groups registered tools.
type ToolCategory string

const (
	// CategoryMemory is for the store and find tools.
	CategoryMemory ToolCategory = "memory"
	// CategoryLegacy is for memory_upsert and memory_query.
	CategoryLegacy ToolCategory = "legacy"
)

// ToolMetadata describes a registered MCP tool.
type ToolMetadata struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    ToolCategory `json:"category"`

	// Keywords are additional searchable terms for this tool.
	Keywords []string `json:"keywords,omitempty"`
}

// ToolRegistry keeps metadata about the tools a server exposes, for the
// health endpoint and startup logging.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*ToolMetadata
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*ToolMetadata)}
}

// Register adds or replaces a tool. Nil and unnamed tools are ignored.
func (r *ToolRegistry) Register(tool *ToolMetadata) {
	if tool == nil || tool.Name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

// Get returns the metadata for a tool.
func (r *ToolRegistry) Get(name string) (*ToolMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all tools sorted by name.
func (r *ToolRegistry) List() []*ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*ToolMetadata, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// ListNames returns all tool names, sorted.
func (r *ToolRegistry) ListNames() []string {
	tools := r.List()
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
	}
	return names
}

// ListByCategory returns the tools in category, sorted by name.
func (r *ToolRegistry) ListByCategory(category ToolCategory) []*ToolMetadata {
	var result []*ToolMetadata
	for _, tool := range r.List() {
		if tool.Category == category {
			result = append(result, tool)
		}
	}
	return result
}

// Search returns tools whose name, description or keywords contain query,
// case-insensitively. Name matches come first.
func (r *ToolRegistry) Search(query string) []*ToolMetadata {
	if query == "" {
		return nil
	}
	q := strings.ToLower(query)

	var byName, other []*ToolMetadata
	for _, tool := range r.List() {
		switch {
		case strings.Contains(strings.ToLower(tool.Name), q):
			byName = append(byName, tool)
		case strings.Contains(strings.ToLower(tool.Description), q):
			other = append(other, tool)
		default:
			for _, kw := range tool.Keywords {
				if strings.Contains(strings.ToLower(kw), q) {
					other = append(other, tool)
					break
				}
			}
		}
	}
	return append(byName, other...)
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
