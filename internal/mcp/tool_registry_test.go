package mcp

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolRegistry_RegisterAndGet(t *testing.T) {
	r := NewToolRegistry()
	tool := &ToolMetadata{Name: ToolStore, Description: "Keep the memory", Category: CategoryMemory, Keywords: []string{"remember"}}

	r.Register(tool)
	r.Register(nil)
	r.Register(&ToolMetadata{Description: "no name"})

	got, ok := r.Get(ToolStore)
	require.True(t, ok)
	assert.Equal(t, tool, got)
	assert.Equal(t, 1, r.Count())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestToolRegistry_RegisterReplaces(t *testing.T) {
	r := NewToolRegistry()
	r.Register(&ToolMetadata{Name: ToolFind, Description: "old"})
	r.Register(&ToolMetadata{Name: ToolFind, Description: "new"})

	got, ok := r.Get(ToolFind)
	require.True(t, ok)
	assert.Equal(t, "new", got.Description)
	assert.Equal(t, 1, r.Count())
}

func TestToolRegistry_ListSortedAndByCategory(t *testing.T) {
	r := NewToolRegistry()
	r.Register(&ToolMetadata{Name: ToolStore, Category: CategoryMemory})
	r.Register(&ToolMetadata{Name: ToolMemoryUpsert, Category: CategoryLegacy})
	r.Register(&ToolMetadata{Name: ToolFind, Category: CategoryMemory})

	assert.Equal(t, []string{ToolFind, ToolMemoryUpsert, ToolStore}, r.ListNames())

	mem := r.ListByCategory(CategoryMemory)
	require.Len(t, mem, 2)
	assert.Equal(t, ToolFind, mem[0].Name)
	assert.Empty(t, r.ListByCategory("other"))
}

func TestToolRegistry_Search(t *testing.T) {
	r := NewToolRegistry()
	r.Register(&ToolMetadata{Name: ToolMemoryQuery, Description: "Retrieve facts", Keywords: []string{"recall"}})
	r.Register(&ToolMetadata{Name: ToolFind, Description: "Look up memories", Keywords: []string{"search"}})
	r.Register(&ToolMetadata{Name: ToolStore, Description: "Keep the memory"})

	results := r.Search("memor")
	require.Len(t, results, 3)
	assert.Equal(t, ToolMemoryQuery, results[0].Name)

	results = r.Search("RECALL")
	require.Len(t, results, 1)
	assert.Equal(t, ToolMemoryQuery, results[0].Name)

	assert.Nil(t, r.Search(""))
	assert.Empty(t, r.Search("nothing-matches"))
}

func TestToolRegistry_Concurrent(t *testing.T) {
	r := NewToolRegistry()
	var wg sync.WaitGroup
	for _, name := range []string{ToolStore, ToolFind, ToolMemoryUpsert, ToolMemoryQuery} {
		wg.Add(2)
		go func(n string) {
			defer wg.Done()
			r.Register(&ToolMetadata{Name: n})
		}(name)
		go func() {
			defer wg.Done()
			_ = r.List()
		}()
	}
	wg.Wait()
	assert.Equal(t, 4, r.Count())
}
