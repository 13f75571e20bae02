// Package sqlgraph stores a property graph in SQLite.
package sqlgraph

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/joss/ogm/internal/logging"
	"github.com/joss/ogm/pkg/graph"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store is a graph database file shared by its sessions.
type Store struct {
	db   *sql.DB
	path string
	log  *logging.Logger

	mu      sync.Mutex
	entropy io.Reader
}

// New opens (creating if needed) the database at path and migrates it.
func New(path string) (*Store, error) {
	if path == "" {
		path = MemoryPath
	}
	dsn := path + "?_fk=1"
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = path + "?_journal=WAL&_timeout=5000&_fk=1"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == MemoryPath {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	s, err := NewWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.path = path
	return s, nil
}

// NewWithDB wraps an open database handle and migrates it.
func NewWithDB(db *sql.DB) (*Store, error) {
	s := &Store{
		db:      db,
		log:     logging.New("sqlgraph"),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS classes (
		name TEXT PRIMARY KEY,
		base TEXT NOT NULL
	);

	INSERT OR IGNORE INTO classes (name, base) VALUES ('V', 'V'), ('E', 'E');

	CREATE TABLE IF NOT EXISTS properties (
		class TEXT NOT NULL REFERENCES classes(name) ON DELETE CASCADE,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		PRIMARY KEY (class, name)
	);

	CREATE TABLE IF NOT EXISTS indexes (
		name TEXT PRIMARY KEY,
		class TEXT NOT NULL REFERENCES classes(name) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		props TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS vertices (
		rid TEXT PRIMARY KEY,
		class TEXT NOT NULL REFERENCES classes(name),
		version INTEGER NOT NULL DEFAULT 1,
		props BLOB NOT NULL,
		doc TEXT NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_vertices_class ON vertices(class);

	CREATE TABLE IF NOT EXISTS edges (
		rid TEXT PRIMARY KEY,
		label TEXT NOT NULL REFERENCES classes(name),
		out_rid TEXT NOT NULL REFERENCES vertices(rid) ON DELETE CASCADE,
		in_rid TEXT NOT NULL REFERENCES vertices(rid) ON DELETE CASCADE,
		props BLOB
	);

	CREATE INDEX IF NOT EXISTS idx_edges_out ON edges(out_rid, label);
	CREATE INDEX IF NOT EXISTS idx_edges_in ON edges(in_rid, label);

	CREATE TABLE IF NOT EXISTS index_keys (
		name TEXT NOT NULL REFERENCES indexes(name) ON DELETE CASCADE,
		value_key BLOB NOT NULL,
		rid TEXT NOT NULL REFERENCES vertices(rid) ON DELETE CASCADE,
		PRIMARY KEY (name, value_key)
	);

	CREATE INDEX IF NOT EXISTS idx_index_keys_rid ON index_keys(rid);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file, or MemoryPath.
func (s *Store) Path() string { return s.path }

// Open starts a session on the store.
func (s *Store) Open() *Session {
	return newSession(s)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// nextRID returns a new record identity. Identities sort in creation order.
func (s *Store) nextRID() graph.RID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return graph.RID("#" + ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String())
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// isConstraint reports whether err is a SQLite constraint violation.
func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}
