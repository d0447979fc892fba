package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore is an in-memory Store that keeps children in insertion order.
// It is used for dry runs over fixtures and in tests.
type MemoryStore struct {
	mu     sync.Mutex
	nodes  map[string]*memoryNode
	writes int

	// ReadHook, when set, is consulted before every read; a non-nil error
	// fails the read.
	ReadHook func(path string) error

	// UpdateHook, when set, is consulted before every update; a non-nil
	// error fails the update.
	UpdateHook func(path, key string) error
}

type memoryNode struct {
	keys   []string
	values map[string]json.RawMessage
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nodes: make(map[string]*memoryNode)}
}

// Ensure MemoryStore implements the store interfaces.
var (
	_ Store     = (*MemoryStore)(nil)
	_ KeyLister = (*MemoryStore)(nil)
	_ Putter    = (*MemoryStore)(nil)
)

// Put inserts or replaces a child. Replacing keeps the original position.
func (m *MemoryStore) Put(_ context.Context, path, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	node := m.node(path)
	if _, exists := node.values[key]; !exists {
		node.keys = append(node.keys, key)
	}
	node.values[key] = slices.Clone(value)
	return nil
}

// ReadChildren returns the children of path in insertion order.
func (m *MemoryStore) ReadChildren(_ context.Context, path string) (Children, error) {
	if m.ReadHook != nil {
		if err := m.ReadHook(path); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := m.nodes[Join(path)]
	if !ok {
		return Children{}, nil
	}
	out := make(Children, 0, len(node.keys))
	for _, k := range node.keys {
		out = append(out, Child{Key: k, Value: slices.Clone(node.values[k])})
	}
	return out, nil
}

// ListKeys returns the child keys of path in insertion order.
func (m *MemoryStore) ListKeys(ctx context.Context, path string) ([]string, error) {
	children, err := m.ReadChildren(ctx, path)
	if err != nil {
		return nil, err
	}
	return children.Keys(), nil
}

// Update merges fields into an existing child.
func (m *MemoryStore) Update(_ context.Context, path, key string, fields map[string]any) error {
	if m.UpdateHook != nil {
		if err := m.UpdateHook(path, key); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := m.nodes[Join(path)]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", path, key, ErrNotFound)
	}
	current, ok := node.values[key]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", path, key, ErrNotFound)
	}
	merged, err := MergeFields(current, fields)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", path, key, err)
	}
	node.values[key] = merged
	m.writes++
	return nil
}

// Get returns a single child value.
func (m *MemoryStore) Get(path, key string) (json.RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := m.nodes[Join(path)]
	if !ok {
		return nil, false
	}
	v, ok := node.values[key]
	return slices.Clone(v), ok
}

// Writes returns the number of successful updates.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// ResetWrites zeroes the update counter.
func (m *MemoryStore) ResetWrites() {
	m.mu.Lock()
	m.writes = 0
	m.mu.Unlock()
}

func (m *MemoryStore) node(path string) *memoryNode {
	path = Join(path)
	node, ok := m.nodes[path]
	if !ok {
		node = &memoryNode{values: make(map[string]json.RawMessage)}
		m.nodes[path] = node
	}
	return node
}
