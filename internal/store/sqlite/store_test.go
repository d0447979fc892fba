package sqlite

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/idosync/internal/migration"
	"github.com/zjrosen/idosync/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestOpen_CreatesDirectory verifies that Open creates the parent directory if missing.
func TestOpen_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	s, err := Open(dbPath)
	require.NoError(t, err, "Open should succeed even with nested non-existent directories")
	defer s.Close()

	info, err := os.Stat(filepath.Dir(dbPath))
	require.NoError(t, err)
	require.True(t, info.IsDir())
	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0700), info.Mode().Perm())
	}
	require.Equal(t, dbPath, s.Path())
}

// TestOpen_RunsMigrations verifies that the documents table exists after Open.
func TestOpen_RunsMigrations(t *testing.T) {
	s := openTestStore(t)

	var name string
	err := s.conn.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='documents'",
	).Scan(&name)
	require.NoError(t, err, "documents table should exist after migrations")
	require.Equal(t, "documents", name)
}

// TestOpen_Reopen verifies that reopening an existing database keeps its data.
func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, s1.Put(ctx, "users", "u1", json.RawMessage(`{"email":"a@b.c"}`)))
	require.NoError(t, s1.Close())

	s2, err := Open(dbPath)
	require.NoError(t, err, "second Open should find no pending migrations")
	defer s2.Close()

	keys, err := s2.ListKeys(ctx, "users")
	require.NoError(t, err)
	require.Equal(t, []string{"u1"}, keys)
}

func TestReadChildren_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, k := range []string{"zeta", "alpha", "10", "2"} {
		require.NoError(t, s.Put(ctx, "users/u1/tasks", k, json.RawMessage(`{"id":"`+k+`"}`)))
	}
	// Replacing keeps position.
	require.NoError(t, s.Put(ctx, "users/u1/tasks", "alpha", json.RawMessage(`{"id":"again"}`)))

	children, err := s.ReadChildren(ctx, "users/u1/tasks")
	require.NoError(t, err)
	require.Equal(t, []string{"zeta", "alpha", "10", "2"}, children.Keys())
	require.JSONEq(t, `{"id":"again"}`, string(children[1].Value))
}

func TestReadChildren_MissingPathIsEmpty(t *testing.T) {
	s := openTestStore(t)

	children, err := s.ReadChildren(context.Background(), "users/nobody/tasks")
	require.NoError(t, err)
	require.NotNil(t, children)
	require.Empty(t, children)
}

func TestPut_RejectsInvalidJSON(t *testing.T) {
	s := openTestStore(t)

	err := s.Put(context.Background(), "users", "u1", json.RawMessage(`{nope`))
	require.ErrorContains(t, err, "invalid JSON")
}

func TestUpdate_MergesFields(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Put(ctx, "users/u1/tasks", "k1", json.RawMessage(`{"id":"x y","done":true,"tags":["a"]}`)))

	require.NoError(t, s.Update(ctx, "users/u1/tasks", "k1", map[string]any{"idOS": "X-Y"}))

	children, err := s.ReadChildren(ctx, "users/u1/tasks")
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.JSONEq(t, `{"id":"x y","done":true,"tags":["a"],"idOS":"X-Y"}`, string(children[0].Value))
}

func TestUpdate_MissingChild(t *testing.T) {
	s := openTestStore(t)

	err := s.Update(context.Background(), "users/u1/tasks", "ghost", map[string]any{"idOS": "A"})
	require.ErrorIs(t, err, store.ErrNotFound)
}

// TestPass_AgainstSQLite runs a full pass twice against the SQLite store.
func TestPass_AgainstSQLite(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, store.OwnersRoot, "u1", json.RawMessage(`{}`)))
	require.NoError(t, s.Put(ctx, store.TasksPath("u1"), "k1", json.RawMessage(`{"id":"X Y"}`)))
	require.NoError(t, s.Put(ctx, store.TasksPath("u1"), "k2", json.RawMessage(`{"id":"x-y"}`)))
	require.NoError(t, s.Put(ctx, store.TasksPath("u1"), "k3", json.RawMessage(`{"title":"no id"}`)))

	sum, err := migration.New(s, migration.Options{}).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, sum.RecordsUpdated)
	require.Zero(t, sum.FailureCount())

	children, err := s.ReadChildren(ctx, store.TasksPath("u1"))
	require.NoError(t, err)
	got := make(map[string]string)
	for _, c := range children {
		var doc map[string]any
		require.NoError(t, json.Unmarshal(c.Value, &doc))
		got[c.Key], _ = doc["idOS"].(string)
	}
	require.Equal(t, "X-Y", got["k1"])
	require.Equal(t, "X-Y-1", got["k2"])
	require.Equal(t, "TASK-K3", got["k3"])

	again, err := migration.New(s, migration.Options{}).Run(ctx)
	require.NoError(t, err)
	require.Zero(t, again.RecordsUpdated)
	require.Zero(t, again.RecordsChanged)
}
