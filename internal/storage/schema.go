package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

// migration is one schema step. Steps run in order inside a transaction and
// are recorded in schema_version so each is applied once.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "credentials",
		stmts: []string{
			// Only the bcrypt hash of an issued token is kept.
			`CREATE TABLE IF NOT EXISTS credentials (
				identity   TEXT PRIMARY KEY,
				token_hash TEXT NOT NULL,
				created_at TEXT NOT NULL,
				last_seen  TEXT NOT NULL
			)`,
		},
	},
	{
		version: 2,
		name:    "messages",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS messages (
				id        INTEGER PRIMARY KEY AUTOINCREMENT,
				sender    TEXT NOT NULL,
				receiver  TEXT NOT NULL,
				body      TEXT NOT NULL,
				kind      TEXT NOT NULL DEFAULT 'text',
				timestamp TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender, timestamp)`,
			`CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver, timestamp)`,
		},
	},
}

// currentSchemaVersion is the version of the last entry in migrations.
var currentSchemaVersion = migrations[len(migrations)-1].version

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	applied, err := s.appliedVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= applied {
			continue
		}
		if err := s.apply(m); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func (s *SQLiteStore) apply(m migration) error {
	log.Printf("storage: applying migration %d (%s)", m.version, m.name)

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		m.version, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) appliedVersion() (int, error) {
	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// tableExists reports whether a table exists in the current database.
func (s *SQLiteStore) tableExists(name string) (bool, error) {
	var table string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		name,
	).Scan(&table)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return true, nil
}

// SchemaVersion returns the highest migration applied to the database.
func (s *SQLiteStore) SchemaVersion() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appliedVersion()
}
