package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/pledgewatch/pkg/types"
)

// dbFileName is the SQLite database file created inside the data directory.
const dbFileName = "pledgewatch.db"

// timeLayout is the stored timestamp format. RFC 3339 with nanoseconds so
// creation-order sorting by the text column matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the SQLite-backed record store. Reconciliation reads entities
// and donations through it and writes staged counter patches back; donation
// rows themselves are never mutated by a run.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// Open opens (or creates) the database under dataDir and applies the
// schema. Existing data is preserved; the schema is idempotent.
func Open(dataDir string) (*Store, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, dbFileName))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close releases the database handle. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// guard returns ErrStoreClosed when the store has been closed.
func (s *Store) guard() error {
	if s.closed {
		return types.ErrStoreClosed
	}
	return nil
}
