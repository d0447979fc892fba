// Package store defines the hierarchical document store contract the
// migration runs against, plus an in-memory implementation.
//
// Paths are slash-separated, e.g. "users/u1/tasks". A path's children are
// key/value pairs whose values are JSON documents.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNotFound is returned when an update targets a child that does not exist.
var ErrNotFound = errors.New("not found")

// OwnersRoot is the path whose children are the owners (accounts).
const OwnersRoot = "users"

// Child is one key/value pair under a path.
type Child struct {
	Key   string
	Value json.RawMessage
}

// Children is the ordered content of a path. Order is the store's
// iteration order and must be stable between reads of unchanged data.
type Children []Child

// Keys returns the child keys in order.
func (c Children) Keys() []string {
	keys := make([]string, len(c))
	for i, child := range c {
		keys[i] = child.Key
	}
	return keys
}

// Store is the contract consumed by the migration.
type Store interface {
	// ReadChildren returns the children of path in store order.
	// A missing path yields an empty result, not an error.
	ReadChildren(ctx context.Context, path string) (Children, error)

	// Update applies fields to the child key under path, leaving every
	// other field of that child untouched.
	Update(ctx context.Context, path, key string, fields map[string]any) error
}

// KeyLister is implemented by stores that can list child keys without
// loading the values.
type KeyLister interface {
	ListKeys(ctx context.Context, path string) ([]string, error)
}

// Putter is implemented by stores that can be seeded with whole documents.
type Putter interface {
	Put(ctx context.Context, path, key string, value json.RawMessage) error
}

// Join builds a path from segments, dropping empty ones and stray slashes.
func Join(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, "/")
}

// TasksPath returns the path holding an owner's tasks.
func TasksPath(owner string) string {
	return Join(OwnersRoot, owner, "tasks")
}

// Keys lists the child keys of path, using KeyLister when s implements it.
func Keys(ctx context.Context, s Store, path string) ([]string, error) {
	if kl, ok := s.(KeyLister); ok {
		return kl.ListKeys(ctx, path)
	}
	children, err := s.ReadChildren(ctx, path)
	if err != nil {
		return nil, err
	}
	return children.Keys(), nil
}

// MergeFields applies fields to a JSON object document and returns the
// result. A null or empty document is treated as an empty object.
func MergeFields(doc json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	obj := make(map[string]json.RawMessage)
	if len(doc) > 0 && string(doc) != "null" {
		if err := json.Unmarshal(doc, &obj); err != nil {
			return nil, err
		}
	}
	for name, value := range fields {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		obj[name] = encoded
	}
	return json.Marshal(obj)
}
