package session

import (
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/supportdesk/host/internal/chat"
)

// inbox is the pending state for one identity.
type inbox struct {
	pending []chat.Message
	unread  bool
}

// Inboxes holds per-identity queues of messages the operator has not seen yet.
type Inboxes struct {
	mu      sync.Mutex
	inboxes map[string]*inbox
}

// NewInboxes creates an empty inbox manager.
func NewInboxes() *Inboxes {
	return &Inboxes{inboxes: make(map[string]*inbox)}
}

// Ensure creates an empty inbox for identity if it has none.
func (m *Inboxes) Ensure(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(identity)
}

// Enqueue appends msg to identity's inbox and marks it unread.
func (m *Inboxes) Enqueue(identity string, msg chat.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ib := m.get(identity)
	ib.pending = append(ib.pending, msg)
	ib.unread = true
}

// Drain returns identity's pending messages in arrival order, empties the
// inbox and clears the unread flag. Draining an empty or unknown inbox
// returns an empty slice.
func (m *Inboxes) Drain(identity string) []chat.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	ib, ok := m.inboxes[identity]
	if !ok {
		return []chat.Message{}
	}
	drained := ib.pending
	if drained == nil {
		drained = []chat.Message{}
	}
	ib.pending = nil
	ib.unread = false
	return drained
}

// HasUnread reports whether identity has messages the operator has not seen.
func (m *Inboxes) HasUnread(identity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ib, ok := m.inboxes[identity]
	return ok && ib.unread
}

// Pending returns a copy of identity's queue without draining it.
func (m *Inboxes) Pending(identity string) []chat.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	ib, ok := m.inboxes[identity]
	if !ok {
		return []chat.Message{}
	}
	return slices.Clone(ib.pending)
}

// Unread returns the identities with unread messages, sorted.
func (m *Inboxes) Unread() []string {
	m.mu.Lock()
	ids := lo.FilterMap(lo.Entries(m.inboxes), func(e lo.Entry[string, *inbox], _ int) (string, bool) {
		return e.Key, e.Value.unread
	})
	m.mu.Unlock()

	slices.Sort(ids)
	return ids
}

// get returns identity's inbox, creating it. Callers hold m.mu.
func (m *Inboxes) get(identity string) *inbox {
	ib, ok := m.inboxes[identity]
	if !ok {
		ib = &inbox{}
		m.inboxes[identity] = ib
	}
	return ib
}
