package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/idosync/internal/store"
)

func TestBuilder_WithTask(t *testing.T) {
	s, b := NewMemoryStore(t)

	b.WithTask("u1", "k1").Build()

	owners, err := s.ListKeys(context.Background(), store.OwnersRoot)
	require.NoError(t, err)
	require.Equal(t, []string{"u1"}, owners)

	doc, ok := s.Get(store.TasksPath("u1"), "k1")
	require.True(t, ok)
	require.Equal(t, `{"title":"Task k1"}`, string(doc)) // default title is the key
}

func TestBuilder_FieldOrder(t *testing.T) {
	s, b := NewMemoryStore(t)

	b.WithTask("u1", "k1", ID("X Y"), Field("done", true), IDOS(nil), Title("Renamed")).Build()

	doc, ok := s.Get(store.TasksPath("u1"), "k1")
	require.True(t, ok)
	require.Equal(t, `{"title":"Renamed","id":"X Y","done":true,"idOS":null}`, string(doc))
}

func TestBuilder_Raw(t *testing.T) {
	s, b := NewMemoryStore(t)

	b.WithTask("u1", "k1", Raw(`"just a string"`)).Build()

	doc, ok := s.Get(store.TasksPath("u1"), "k1")
	require.True(t, ok)
	require.Equal(t, `"just a string"`, string(doc))
}

func TestBuilder_InsertOrder(t *testing.T) {
	s, b := NewMemoryStore(t)

	b.WithTask("b", "z").
		WithOwner("a").
		WithTask("b", "y").
		WithTask("a", "x").
		Build()

	owners, err := s.ListKeys(context.Background(), store.OwnersRoot)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a"}, owners)

	tasks, err := s.ListKeys(context.Background(), store.TasksPath("b"))
	require.NoError(t, err)
	require.Equal(t, []string{"z", "y"}, tasks)
}

func TestBuilder_WithStandardTestData(t *testing.T) {
	s, b := NewMemoryStore(t)

	b.WithStandardTestData().Build()

	owners, err := s.ListKeys(context.Background(), store.OwnersRoot)
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob", "carol"}, owners)

	alice, err := s.ListKeys(context.Background(), store.TasksPath("alice"))
	require.NoError(t, err)
	require.Equal(t, []string{"k1", "k2", "abc123xyz", "k3", "k4"}, alice)

	carol, err := s.ListKeys(context.Background(), store.TasksPath("carol"))
	require.NoError(t, err)
	require.Empty(t, carol)
}
