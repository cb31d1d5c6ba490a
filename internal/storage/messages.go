package storage

// messages.go contains the append-only message log.

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/supportdesk/host/internal/chat"
)

// AppendMessage durably inserts msg and returns its ID.
//
// The log assigns the timestamp: msg.Timestamp is used when set, otherwise the
// current time, and in either case it is raised past the newest stored
// timestamp so the log stays strictly monotonic. On success msg.ID and
// msg.Timestamp are updated in place.
func (s *SQLiteStore) AppendMessage(msg *chat.Message) (int64, error) {
	if msg == nil {
		return 0, errors.New("message cannot be nil")
	}
	if msg.Kind == "" {
		msg.Kind = chat.KindOf(msg.Body)
	}
	if err := msg.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = s.timeNow()
	}
	ts = ts.UTC()
	if !ts.After(s.lastTimestamp) {
		ts = s.lastTimestamp.Add(time.Nanosecond)
	}

	const query = `
		INSERT INTO messages (sender, receiver, body, kind, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query, msg.Sender, msg.Receiver, msg.Body, string(msg.Kind), formatTimestamp(ts))
	if err != nil {
		return 0, fmt.Errorf("append message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read message id: %w", err)
	}

	s.lastTimestamp = ts
	msg.ID = id
	msg.Timestamp = ts
	return id, nil
}

// QueryMessages returns every message where identity is sender or receiver,
// oldest first.
func (s *SQLiteStore) QueryMessages(identity string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const query = `
		SELECT id, sender, receiver, body, kind, timestamp
		FROM messages
		WHERE sender = ? OR receiver = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.db.Query(query, identity, identity)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []chat.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	return messages, nil
}

// CountMessages returns the number of rows in the message log.
func (s *SQLiteStore) CountMessages() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) loadLastTimestamp() error {
	var latest sql.NullString
	if err := s.db.QueryRow("SELECT MAX(timestamp) FROM messages").Scan(&latest); err != nil {
		return err
	}
	if !latest.Valid {
		return nil
	}
	t, err := parseTimestamp(latest.String)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	s.lastTimestamp = t
	return nil
}

func scanMessage(row rowScanner) (chat.Message, error) {
	var (
		msg  chat.Message
		kind string
		ts   string
	)

	if err := row.Scan(&msg.ID, &msg.Sender, &msg.Receiver, &msg.Body, &kind, &ts); err != nil {
		return chat.Message{}, err
	}
	msg.Kind = chat.Kind(kind)

	t, err := parseTimestamp(ts)
	if err != nil {
		return chat.Message{}, fmt.Errorf("parse timestamp: %w", err)
	}
	msg.Timestamp = t

	return msg, nil
}
