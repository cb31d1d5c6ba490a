package storage

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/supportdesk/host/internal/chat"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestNewSQLiteStore verifies that a fresh store has both tables at the current version.
func TestNewSQLiteStore(t *testing.T) {
	store := newTestStore(t)

	version, err := store.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("SchemaVersion() = %d, want %d", version, currentSchemaVersion)
	}

	for _, table := range []string{"credentials", "messages"} {
		ok, err := store.tableExists(table)
		if err != nil {
			t.Fatalf("tableExists(%q) failed: %v", table, err)
		}
		if !ok {
			t.Errorf("table %q missing", table)
		}
	}
}

// TestReopenKeepsMessages verifies that migrations are idempotent and data survives a reopen.
func TestReopenKeepsMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desk.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	msg := chat.NewMessage("alice", "server", "hello")
	if _, err := store.AppendMessage(&msg); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	store.Close()

	store, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	got, err := store.QueryMessages("alice")
	if err != nil {
		t.Fatalf("QueryMessages failed: %v", err)
	}
	if len(got) != 1 || got[0].Body != "hello" {
		t.Fatalf("QueryMessages() = %+v, want one message with body hello", got)
	}
	if !store.lastTimestamp.Equal(got[0].Timestamp) {
		t.Errorf("lastTimestamp = %v, want %v", store.lastTimestamp, got[0].Timestamp)
	}
}

func TestCredentialCRUD(t *testing.T) {
	store := newTestStore(t)

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cred := &Credential{
		Identity:  "alice",
		TokenHash: "$2a$10$hash",
		CreatedAt: created,
		LastSeen:  created,
	}
	if err := store.SaveCredential(cred); err != nil {
		t.Fatalf("SaveCredential failed: %v", err)
	}

	got, err := store.GetCredential("alice")
	if err != nil {
		t.Fatalf("GetCredential failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetCredential returned nil")
	}
	if got.TokenHash != cred.TokenHash {
		t.Errorf("TokenHash = %q, want %q", got.TokenHash, cred.TokenHash)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}

	seen := created.Add(time.Hour)
	if err := store.UpdateLastSeen("alice", seen); err != nil {
		t.Fatalf("UpdateLastSeen failed: %v", err)
	}
	got, _ = store.GetCredential("alice")
	if !got.LastSeen.Equal(seen) {
		t.Errorf("LastSeen = %v, want %v", got.LastSeen, seen)
	}

	// Saving again replaces the hash.
	cred.TokenHash = "$2a$10$other"
	if err := store.SaveCredential(cred); err != nil {
		t.Fatalf("SaveCredential (replace) failed: %v", err)
	}
	creds, err := store.ListCredentials()
	if err != nil {
		t.Fatalf("ListCredentials failed: %v", err)
	}
	if len(creds) != 1 || creds[0].TokenHash != "$2a$10$other" {
		t.Fatalf("ListCredentials() = %+v, want one replaced credential", creds)
	}

	if err := store.DeleteCredential("alice"); err != nil {
		t.Fatalf("DeleteCredential failed: %v", err)
	}
	if err := store.DeleteCredential("alice"); err != nil {
		t.Errorf("second DeleteCredential should be a no-op, got %v", err)
	}
	got, err = store.GetCredential("alice")
	if err != nil || got != nil {
		t.Errorf("GetCredential after delete = %+v, %v; want nil, nil", got, err)
	}
}

func TestSaveCredential_Nil(t *testing.T) {
	store := newTestStore(t)
	if err := store.SaveCredential(nil); err == nil {
		t.Error("SaveCredential(nil) should fail")
	}
}

func TestUpdateLastSeen_NotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.UpdateLastSeen("ghost", time.Now())
	if !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("UpdateLastSeen() error = %v, want ErrCredentialNotFound", err)
	}
}

func TestListCredentials_SortedByIdentity(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	for _, id := range []string{"carol", "alice", "bob"} {
		if err := store.SaveCredential(&Credential{Identity: id, TokenHash: "h", CreatedAt: now, LastSeen: now}); err != nil {
			t.Fatalf("SaveCredential(%s) failed: %v", id, err)
		}
	}

	creds, err := store.ListCredentials()
	if err != nil {
		t.Fatalf("ListCredentials failed: %v", err)
	}
	want := []string{"alice", "bob", "carol"}
	if len(creds) != len(want) {
		t.Fatalf("got %d credentials, want %d", len(creds), len(want))
	}
	for i, id := range want {
		if creds[i].Identity != id {
			t.Errorf("creds[%d] = %q, want %q", i, creds[i].Identity, id)
		}
	}
}

// TestAppendMessage_AssignsIDAndTimestamp verifies the log fills in ID, kind and timestamp.
func TestAppendMessage_AssignsIDAndTimestamp(t *testing.T) {
	store := newTestStore(t)
	fixed := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	store.timeNow = func() time.Time { return fixed }

	msg := chat.Message{Sender: "alice", Receiver: "server", Body: "IMAGE: /tmp/a.png"}
	id, err := store.AppendMessage(&msg)
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if id == 0 || msg.ID != id {
		t.Errorf("ID = %d (msg.ID %d), want non-zero and equal", id, msg.ID)
	}
	if msg.Kind != chat.KindImage {
		t.Errorf("Kind = %q, want %q", msg.Kind, chat.KindImage)
	}
	if !msg.Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", msg.Timestamp, fixed)
	}
}

// TestAppendMessage_MonotonicTimestamps verifies equal or backwards clocks never reorder the log.
func TestAppendMessage_MonotonicTimestamps(t *testing.T) {
	store := newTestStore(t)
	fixed := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	store.timeNow = func() time.Time { return fixed }

	var stamps []time.Time
	for _, body := range []string{"one", "two", "three"} {
		msg := chat.NewMessage("alice", "server", body)
		if _, err := store.AppendMessage(&msg); err != nil {
			t.Fatalf("AppendMessage(%s) failed: %v", body, err)
		}
		stamps = append(stamps, msg.Timestamp)
	}

	earlier := chat.NewMessage("alice", "server", "four")
	earlier.Timestamp = fixed.Add(-time.Hour)
	if _, err := store.AppendMessage(&earlier); err != nil {
		t.Fatalf("AppendMessage(four) failed: %v", err)
	}
	stamps = append(stamps, earlier.Timestamp)

	for i := 1; i < len(stamps); i++ {
		if !stamps[i].After(stamps[i-1]) {
			t.Errorf("timestamp %d (%v) not after %d (%v)", i, stamps[i], i-1, stamps[i-1])
		}
	}

	got, err := store.QueryMessages("alice")
	if err != nil {
		t.Fatalf("QueryMessages failed: %v", err)
	}
	wantOrder := []string{"one", "two", "three", "four"}
	for i, body := range wantOrder {
		if got[i].Body != body {
			t.Errorf("got[%d].Body = %q, want %q", i, got[i].Body, body)
		}
	}
}

func TestAppendMessage_RejectsInvalid(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		name string
		msg  chat.Message
	}{
		{name: "empty sender", msg: chat.NewMessage("", "server", "hi")},
		{name: "empty receiver", msg: chat.NewMessage("alice", "", "hi")},
		{name: "empty body", msg: chat.NewMessage("alice", "server", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.msg
			_, err := store.AppendMessage(&msg)
			if !errors.Is(err, ErrInvalidMessage) {
				t.Errorf("AppendMessage() error = %v, want ErrInvalidMessage", err)
			}
		})
	}

	if n, _ := store.CountMessages(); n != 0 {
		t.Errorf("CountMessages() = %d, want 0", n)
	}
}

// TestQueryMessages_SenderOrReceiver verifies the participant filter.
func TestQueryMessages_SenderOrReceiver(t *testing.T) {
	store := newTestStore(t)

	for _, m := range []chat.Message{
		chat.NewMessage("alice", "server", "a1"),
		chat.NewMessage("server", "alice", "r1"),
		chat.NewMessage("bob", "server", "b1"),
		chat.NewMessage("alice", "bob", "a2"),
	} {
		msg := m
		if _, err := store.AppendMessage(&msg); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	tests := []struct {
		identity string
		want     []string
	}{
		{identity: "alice", want: []string{"a1", "r1", "a2"}},
		{identity: "bob", want: []string{"b1", "a2"}},
		{identity: "server", want: []string{"a1", "r1", "b1"}},
		{identity: "nobody", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.identity, func(t *testing.T) {
			got, err := store.QueryMessages(tt.identity)
			if err != nil {
				t.Fatalf("QueryMessages failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d messages, want %d", len(got), len(tt.want))
			}
			for i, body := range tt.want {
				if got[i].Body != body {
					t.Errorf("got[%d].Body = %q, want %q", i, got[i].Body, body)
				}
			}
		})
	}
}

// TestAppendMessage_Concurrent verifies appends from many goroutines all land with unique IDs.
func TestAppendMessage_Concurrent(t *testing.T) {
	store := newTestStore(t)

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				msg := chat.NewMessage("alice", "server", "ping")
				if _, err := store.AppendMessage(&msg); err != nil {
					t.Errorf("AppendMessage failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	n, err := store.CountMessages()
	if err != nil {
		t.Fatalf("CountMessages failed: %v", err)
	}
	if n != writers*perWriter {
		t.Errorf("CountMessages() = %d, want %d", n, writers*perWriter)
	}
}
