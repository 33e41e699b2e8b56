// Package store implements collab's durable state on SQLite: the vote
// ledger, the task ledger, and the document chunk store used for retrieval.
// The driver is pure Go (modernc.org/sqlite), so the binary stays CGO-free.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"collab/internal/embedding"
	"collab/internal/logging"
)

// Ledger error taxonomy. Callers branch with errors.Is.
var (
	// ErrInvalidChoice rejects a vote whose choice folds to no canonical value.
	ErrInvalidChoice = errors.New("invalid choice: use sim, não or abster")

	// ErrDuplicateVote rejects a second vote by the same user on a topic.
	ErrDuplicateVote = errors.New("user already voted on this topic")

	// ErrNotFound reports a missing tally or task.
	ErrNotFound = errors.New("not found")
)

// LocalStore is the durable keyed-record store shared by all sessions.
//
// Locking model:
//   - vote tallies are partitioned by topic: a per-topic mutex serializes the
//     read-modify-write cycle for one topic while distinct topics proceed
//     concurrently;
//   - the task list is a single shared ordered collection, so task mutation
//     is serialized as a whole by taskMu.
type LocalStore struct {
	db     *sql.DB
	dbPath string

	mu         sync.Mutex // guards topicLocks
	topicLocks map[string]*sync.Mutex
	taskMu     sync.Mutex

	engine  embedding.Engine // optional; nil disables semantic indexing
	actions *logging.ActionLog
}

// Open initializes the SQLite database at the given path, creating the
// directory and schema as needed.
func Open(path string) (*LocalStore, error) {
	log := logging.Get(logging.CategoryStore)
	log.Info("opening store at %s", path)

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		log.Debug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Debug("failed to set journal_mode=WAL: %v", err)
	}

	s := &LocalStore{
		db:         db,
		dbPath:     path,
		topicLocks: make(map[string]*sync.Mutex),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *LocalStore) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id          TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			assignee    TEXT NOT NULL,
			deadline    TEXT NOT NULL,
			created_at  TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS vote_tallies (
			topic   TEXT PRIMARY KEY,
			yes     INTEGER NOT NULL DEFAULT 0,
			no      INTEGER NOT NULL DEFAULT 0,
			abstain INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS votes (
			topic  TEXT NOT NULL,
			user   TEXT NOT NULL,
			choice TEXT NOT NULL,
			UNIQUE(topic, user)
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			source     TEXT NOT NULL,
			seq        INTEGER NOT NULL,
			content    TEXT NOT NULL,
			embedding  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_collection ON chunks(collection)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SetEmbeddingEngine configures the engine used to embed chunks and queries.
func (s *LocalStore) SetEmbeddingEngine(engine embedding.Engine) {
	s.engine = engine
}

// SetActionLog wires the audit stream. Ledger mutations are recorded after
// they are durable; a nil log disables recording.
func (s *LocalStore) SetActionLog(actions *logging.ActionLog) {
	s.actions = actions
}

// topicLock returns the mutex serializing updates for one topic.
func (s *LocalStore) topicLock(topic string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.topicLocks[topic]
	if !ok {
		l = &sync.Mutex{}
		s.topicLocks[topic] = l
	}
	return l
}

// Stats returns row counts per table plus chunk counts per collection.
func (s *LocalStore) Stats() (map[string]int64, error) {
	stats := make(map[string]int64)
	for _, table := range []string{"tasks", "vote_tallies", "votes", "chunks"} {
		var n int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		stats[table] = n
	}

	rows, err := s.db.Query("SELECT collection, COUNT(*) FROM chunks GROUP BY collection")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var collection string
		var n int64
		if err := rows.Scan(&collection, &n); err != nil {
			return nil, err
		}
		stats["collection:"+collection] = n
	}
	return stats, rows.Err()
}

// Close closes the database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}
