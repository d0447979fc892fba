// Package sqlite implements store.Store on a local SQLite file.
//
// Every child of every path is one row of the documents table, keyed by
// (parent, key) and ordered by insertion sequence. It backs local rehearsals
// of a pass against seeded fixture data.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zjrosen/idosync/internal/log"
	"github.com/zjrosen/idosync/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a SQLite-backed document store.
type Store struct {
	conn *sql.DB
	path string
}

// Ensure Store implements the store interfaces.
var (
	_ store.Store     = (*Store)(nil)
	_ store.KeyLister = (*Store)(nil)
	_ store.Putter    = (*Store)(nil)
)

// Open opens or creates the database at path and applies pending migrations.
// The parent directory is created if missing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer; keeps the file consistent for a single-threaded pass.
	conn.SetMaxOpenConns(1)

	if err := runMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	log.Debug(log.CatDB, "Opened database", "path", path)
	return &Store{conn: conn, path: path}, nil
}

func runMigrations(conn *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}
	// m.Close would close conn along with the driver.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err == nil {
		log.Debug(log.CatDB, "Schema ready", "version", version, "dirty", dirty)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Put inserts or replaces a child. Replacing keeps the original position.
func (s *Store) Put(ctx context.Context, path, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("put %s/%s: invalid JSON", path, key)
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO documents (parent, key, value) VALUES (?, ?, json(?))
		ON CONFLICT (parent, key) DO UPDATE SET value = excluded.value`,
		store.Join(path), key, string(value),
	)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", path, key, err)
	}
	return nil
}

// ReadChildren returns the children of path in insertion order.
func (s *Store) ReadChildren(ctx context.Context, path string) (store.Children, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT key, value FROM documents WHERE parent = ? ORDER BY seq`,
		store.Join(path),
	)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer func() { _ = rows.Close() }()

	out := store.Children{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		out = append(out, store.Child{Key: key, Value: json.RawMessage(value)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

// ListKeys returns the child keys of path in insertion order.
func (s *Store) ListKeys(ctx context.Context, path string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT key FROM documents WHERE parent = ? ORDER BY seq`,
		store.Join(path),
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("list %s: %w", path, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	return keys, nil
}

// Update merges fields into an existing child with json_patch, in a single
// statement.
func (s *Store) Update(ctx context.Context, path, key string, fields map[string]any) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", path, key, err)
	}
	res, err := s.conn.ExecContext(ctx,
		`UPDATE documents SET value = json_patch(value, ?) WHERE parent = ? AND key = ?`,
		string(patch), store.Join(path), key,
	)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", path, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", path, key, err)
	}
	if n == 0 {
		return fmt.Errorf("update %s/%s: %w", path, key, store.ErrNotFound)
	}
	return nil
}
