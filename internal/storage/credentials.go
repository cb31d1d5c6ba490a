package storage

// credentials.go contains SQLiteStore methods for issued client credentials.

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

// Credential is an issued (identity, token hash) pair.
type Credential struct {
	Identity  string
	TokenHash string
	CreatedAt time.Time
	LastSeen  time.Time
}

// SaveCredential persists a credential, replacing any existing one for the identity.
func (s *SQLiteStore) SaveCredential(cred *Credential) error {
	if cred == nil {
		return errors.New("credential cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log.Printf("storage: saving credential for %s", cred.Identity)

	const query = `
		INSERT OR REPLACE INTO credentials
			(identity, token_hash, created_at, last_seen)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		cred.Identity,
		cred.TokenHash,
		formatTimestamp(cred.CreatedAt),
		formatTimestamp(cred.LastSeen),
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	return nil
}

// GetCredential retrieves the credential for an identity.
// Returns nil, nil if none exists.
func (s *SQLiteStore) GetCredential(identity string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const query = `
		SELECT identity, token_hash, created_at, last_seen
		FROM credentials
		WHERE identity = ?
	`

	cred, err := scanCredential(s.db.QueryRow(query, identity))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}

	return cred, nil
}

// ListCredentials returns all issued credentials ordered by identity.
func (s *SQLiteStore) ListCredentials() ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const query = `
		SELECT identity, token_hash, created_at, last_seen
		FROM credentials
		ORDER BY identity ASC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	var creds []*Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credential rows: %w", err)
	}

	return creds, nil
}

// DeleteCredential revokes an identity's credential.
// Returns nil if the identity has none (idempotent delete).
func (s *SQLiteStore) DeleteCredential(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Printf("storage: deleting credential for %s", identity)

	if _, err := s.db.Exec("DELETE FROM credentials WHERE identity = ?", identity); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}

	return nil
}

// UpdateLastSeen records a successful validation time.
// Returns ErrCredentialNotFound if the identity has no credential.
func (s *SQLiteStore) UpdateLastSeen(identity string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `UPDATE credentials SET last_seen = ? WHERE identity = ?`

	result, err := s.db.Exec(query, formatTimestamp(t), identity)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCredentialNotFound
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*Credential, error) {
	var (
		cred      Credential
		createdAt string
		lastSeen  string
	)

	if err := row.Scan(&cred.Identity, &cred.TokenHash, &createdAt, &lastSeen); err != nil {
		return nil, err
	}

	t, err := parseTimestamp(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	cred.CreatedAt = t

	t, err = parseTimestamp(lastSeen)
	if err != nil {
		return nil, fmt.Errorf("parse last_seen: %w", err)
	}
	cred.LastSeen = t

	return &cred, nil
}
