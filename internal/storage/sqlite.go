package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	// Pure-Go SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

// ErrCredentialNotFound is returned when an update targets an identity with no credential.
var ErrCredentialNotFound = errors.New("credential not found")

// ErrInvalidMessage is returned when a message fails validation before insert.
var ErrInvalidMessage = errors.New("invalid message")

// SQLiteStore holds issued credentials and the append-only message log.
// It creates the database and tables on first use and supports
// concurrent access through internal locking.
type SQLiteStore struct {
	db *sql.DB      // Database connection handle.
	mu sync.RWMutex // Guards all database operations.

	// lastTimestamp is the newest timestamp handed out by AppendMessage;
	// guarded by mu. Appends never reuse or go below it.
	lastTimestamp time.Time

	timeNow func() time.Time
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
// It initializes the schema if the tables don't exist.
// Use ":memory:" for an in-memory database (useful for testing).
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	log.Printf("storage: opening database at %s", path)

	// synchronous(FULL) makes every committed append durable before Exec returns.
	// busy_timeout covers the CLI and a running host touching the file together.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, timeNow: time.Now}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	if err := store.loadLastTimestamp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load last timestamp: %w", err)
	}

	log.Printf("storage: database ready (schema version %d)", currentSchemaVersion)
	return store, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	log.Printf("storage: closing database")
	return s.db.Close()
}

// timestampLayout is fixed width so stored values sort lexically in time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}
