package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/supportdesk/host/internal/chat"
	"github.com/supportdesk/host/internal/storage"
)

func TestHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desk.db")

	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	for _, m := range []chat.Message{
		chat.NewMessage("alice", "server", "my printer is on fire"),
		chat.NewMessage("server", "alice", "unplug it"),
		chat.NewMessage("bob", "server", "unrelated"),
	} {
		msg := m
		if _, err := store.AppendMessage(&msg); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}
	store.Close()

	code, out, errOut := runWithArgs("history", "--store", path, "alice")
	if code != 0 {
		t.Fatalf("history failed: %d %q", code, errOut)
	}
	first := strings.Index(out, "my printer is on fire")
	second := strings.Index(out, "unplug it")
	if first < 0 || second < 0 || second < first {
		t.Errorf("expected both messages in order, got %q", out)
	}
	if strings.Contains(out, "unrelated") {
		t.Errorf("bob's message leaked into alice's history: %q", out)
	}
}

func TestHistory_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desk.db")
	code, out, _ := runWithArgs("history", "--store", path, "nobody")
	if code != 0 || !strings.Contains(out, "No messages for nobody.") {
		t.Errorf("got %d %q", code, out)
	}
}
