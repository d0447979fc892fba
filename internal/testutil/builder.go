// Package testutil provides builders for seeding stores in tests.
package testutil

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/idosync/internal/store"
)

// ownerData holds an owner and its tasks, in insertion order.
type ownerData struct {
	uid    string
	fields map[string]any
	tasks  []taskData
}

// Builder accumulates owners and tasks and writes them in order.
type Builder struct {
	t      *testing.T
	dst    store.Putter
	owners []*ownerData
}

// NewBuilder creates a builder writing to dst.
func NewBuilder(t *testing.T, dst store.Putter) *Builder {
	t.Helper()
	return &Builder{t: t, dst: dst}
}

// NewMemoryStore returns an empty in-memory store with a builder for it.
func NewMemoryStore(t *testing.T) (*store.MemoryStore, *Builder) {
	t.Helper()
	s := store.NewMemoryStore()
	return s, NewBuilder(t, s)
}

// WithOwner adds an owner. Calling it again for the same uid reuses it.
func (b *Builder) WithOwner(uid string) *Builder {
	b.owner(uid)
	return b
}

// WithTask adds a task to owner, creating the owner if needed.
func (b *Builder) WithTask(owner, key string, opts ...TaskOption) *Builder {
	task := defaultTask(key)
	for _, opt := range opts {
		opt(&task)
	}
	o := b.owner(owner)
	o.tasks = append(o.tasks, task)
	return b
}

// Build writes owners first, then each owner's tasks.
func (b *Builder) Build() {
	b.t.Helper()
	ctx := context.Background()
	for _, o := range b.owners {
		b.put(ctx, store.OwnersRoot, o.uid, o.fields)
		for _, task := range o.tasks {
			b.putTask(ctx, store.TasksPath(o.uid), task)
		}
	}
}

func (b *Builder) owner(uid string) *ownerData {
	for _, o := range b.owners {
		if o.uid == uid {
			return o
		}
	}
	o := &ownerData{uid: uid, fields: map[string]any{"email": uid + "@example.com"}}
	b.owners = append(b.owners, o)
	return o
}

func (b *Builder) putTask(ctx context.Context, path string, task taskData) {
	b.t.Helper()
	if task.raw != nil {
		require.NoError(b.t, b.dst.Put(ctx, path, task.key, task.raw))
		return
	}
	b.put(ctx, path, task.key, task.document())
}

func (b *Builder) put(ctx context.Context, path, key string, doc any) {
	b.t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(b.t, err)
	require.NoError(b.t, b.dst.Put(ctx, path, key, data))
}
