// Package store is the Transcript Store (C6): durable, append-only
// persistence for meetings, recordings, transcript rows, insight notes,
// tasks, speakers, and failure events, §4.6/§6. It is backed by
// modernc.org/sqlite in WAL mode; every write commits before the call
// returns, and batch writes are atomic.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/meetinglens/transcriptd/internal/persistence/sqlite"
)

// Store wraps one SQLite connection pool and exposes the operations
// C5, C7, C8, and C10 need. All mutation methods are safe for
// concurrent use; database/sql serializes writers under the hood.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path, applies
// pending migrations, and returns a ready Store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying pool for callers (e.g. the integrity
// checker) that need raw access; new code should prefer a Store method.
func (s *Store) DB() *sql.DB {
	return s.db
}
