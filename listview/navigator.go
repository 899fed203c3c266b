package listview

import (
	"net/url"
	"sync"
)

// Navigator is the routing collaborator that owns the current query string.
type Navigator interface {
	Query() url.Values
	// Replace swaps the query string without adding a history entry.
	Replace(values url.Values)
}

// MemoryNavigator keeps the query string in memory.
type MemoryNavigator struct {
	mu           sync.Mutex
	values       url.Values
	replacements int
}

// NewMemoryNavigator starts at the given query string.
func NewMemoryNavigator(initial url.Values) *MemoryNavigator {
	return &MemoryNavigator{values: cloneValues(initial)}
}

func (n *MemoryNavigator) Query() url.Values {
	n.mu.Lock()
	defer n.mu.Unlock()
	return cloneValues(n.values)
}

func (n *MemoryNavigator) Replace(values url.Values) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.values = cloneValues(values)
	n.replacements++
}

// Replacements counts Replace calls.
func (n *MemoryNavigator) Replacements() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.replacements
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
