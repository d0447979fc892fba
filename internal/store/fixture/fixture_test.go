package fixture

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/idosync/internal/store"
)

const sample = `
users:
  uid-b:
    email: b@example.com
    tasks:
      zz: {id: "X Y", done: true}
      aa:
        id: x-y
        tags: [one, two]
        estimate: 3
  uid-a:
    email: a@example.com
`

func TestLoad_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	stats, err := Load(ctx, strings.NewReader(sample), s)
	require.NoError(t, err)
	require.Equal(t, Stats{Owners: 2, Tasks: 2}, stats)

	owners, err := s.ListKeys(ctx, store.OwnersRoot)
	require.NoError(t, err)
	require.Equal(t, []string{"uid-b", "uid-a"}, owners)

	tasks, err := s.ReadChildren(ctx, store.TasksPath("uid-b"))
	require.NoError(t, err)
	require.Equal(t, []string{"zz", "aa"}, tasks.Keys())
	require.JSONEq(t, `{"id":"X Y","done":true}`, string(tasks[0].Value))
	require.JSONEq(t, `{"id":"x-y","tags":["one","two"],"estimate":3}`, string(tasks[1].Value))
	require.Equal(t, `{"id":"X Y","done":true}`, string(tasks[0].Value), "key order kept")
}

func TestLoad_OwnerWithoutTasks(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	_, err := Load(ctx, strings.NewReader(sample), s)
	require.NoError(t, err)

	doc, ok := s.Get(store.OwnersRoot, "uid-b")
	require.True(t, ok)
	require.JSONEq(t, `{"email":"b@example.com"}`, string(doc), "tasks are stored separately")

	tasks, err := s.ReadChildren(ctx, store.TasksPath("uid-a"))
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestLoad_TaskList(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	stats, err := Load(ctx, strings.NewReader(`
users:
  u1:
    tasks:
      - ~
      - {id: a}
      - {id: b}
`), s)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Tasks)

	tasks, err := s.ReadChildren(ctx, store.TasksPath("u1"))
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, tasks.Keys())
}

func TestLoad_Anchors(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	_, err := Load(ctx, strings.NewReader(`
base: &base {id: "dup", priority: 1}
users:
  u1:
    tasks:
      k1: *base
      k2: *base
`), s)
	require.NoError(t, err)

	doc, ok := s.Get(store.TasksPath("u1"), "k2")
	require.True(t, ok)
	require.JSONEq(t, `{"id":"dup","priority":1}`, string(doc))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "not a mapping", input: "- a\n- b\n", wantErr: "must be a mapping"},
		{name: "no users", input: "accounts: {}\n", wantErr: `no "users"`},
		{name: "users is a list", input: "users: [a]\n", wantErr: `"users" must be a mapping`},
		{name: "tasks scalar", input: "users:\n  u1:\n    tasks: nope\n", wantErr: "tasks must be a mapping or a list"},
		{name: "bad yaml", input: "users: {a: [}\n", wantErr: "parsing fixture"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), strings.NewReader(tt.input), store.NewMemoryStore())
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoad_Empty(t *testing.T) {
	stats, err := Load(context.Background(), strings.NewReader(""), store.NewMemoryStore())
	require.NoError(t, err)
	require.Zero(t, stats)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0600))

	stats, err := LoadFile(context.Background(), path, store.NewMemoryStore())
	require.NoError(t, err)
	require.Equal(t, 2, stats.Owners)

	_, err = LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), store.NewMemoryStore())
	require.ErrorContains(t, err, "opening fixture")
}
