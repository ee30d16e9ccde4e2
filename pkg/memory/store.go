// Package memory persists the memory of memory-augmented agents in SQLite.
//
// Each agent owns three tiers, keyed by agent name:
//   - core memory: small named blocks ("persona", "human") rendered into the
//     system prompt on every step;
//   - recall memory: every message the agent has seen;
//   - archival memory: free-text passages the agent chose to store.
//
// The tiers are exposed to the model as functions through [Functions].
package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// FileName is the database file created inside a data dir.
const FileName = "memory.db"

// timeLayout sorts lexically, so date ranges compare as strings.
const timeLayout = "2006-01-02 15:04:05.000000"

var (
	// ErrBlockNotFound is returned for core memory labels that do not exist.
	ErrBlockNotFound = errors.New("memory: block not found")
	// ErrLimitExceeded is returned when an edit would push a block over its limit.
	ErrLimitExceeded = errors.New("memory: block limit exceeded")
	// ErrContentNotFound is returned when a replace target is absent from a block.
	ErrContentNotFound = errors.New("memory: content not found in block")
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS core_blocks (
	agent      TEXT NOT NULL,
	label      TEXT NOT NULL,
	value      TEXT NOT NULL,
	char_limit INTEGER NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (agent, label)
);
CREATE TABLE IF NOT EXISTS recall (
	id         TEXT PRIMARY KEY,
	agent      TEXT NOT NULL,
	role       TEXT NOT NULL,
	sender     TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS recall_agent_time ON recall (agent, created_at);
CREATE TABLE IF NOT EXISTS archival (
	id         TEXT PRIMARY KEY,
	agent      TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS archival_agent_time ON archival (agent, created_at);
`

// Store is a memory database shared by every agent of a session.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the time source used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the database at path.
func Open(path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("memory: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("memory: open database: %w", err)
	}
	// A single connection serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(storeSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: init schema: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}

	return s, nil
}

// OpenDir opens FileName inside dir.
func OpenDir(dir string, opts ...Option) (*Store, error) {
	return Open(filepath.Join(dir, FileName), opts...)
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// For returns the memory of the named agent.
func (s *Store) For(agent string) *Memory {
	return &Memory{store: s, agent: agent}
}

// Agents lists agent names that have any core memory.
func (s *Store) Agents(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT agent FROM core_blocks ORDER BY agent`)
	if err != nil {
		return nil, fmt.Errorf("memory: list agents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("memory: list agents: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(timeLayout)
}
