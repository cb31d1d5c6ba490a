package session

import (
	"errors"
	"sync"

	"github.com/supportdesk/host/internal/chat"
)

// fakeConn records frames written to it.
type fakeConn struct {
	id string

	mu      sync.Mutex
	frames  []string
	closed  bool
	sendErr error
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(frame string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) Frames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// recorder is a Sink that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) displayBodies() []string {
	var out []string
	for _, e := range r.ofType(EventDisplay) {
		out = append(out, e.Body)
	}
	return out
}

func (r *recorder) lastClients() []ClientStatus {
	lists := r.ofType(EventClientListChanged)
	if len(lists) == 0 {
		return nil
	}
	return lists[len(lists)-1].Clients
}

// memLog is an in-memory MessageLog that can be told to fail.
type memLog struct {
	mu   sync.Mutex
	msgs []chat.Message
	fail bool
}

var errLogDown = errors.New("log unavailable")

func (l *memLog) AppendMessage(msg *chat.Message) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return 0, errLogDown
	}
	msg.ID = int64(len(l.msgs) + 1)
	l.msgs = append(l.msgs, *msg)
	return msg.ID, nil
}

func (l *memLog) QueryMessages(identity string) ([]chat.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return nil, errLogDown
	}
	out := []chat.Message{}
	for _, m := range l.msgs {
		if m.Sender == identity || m.Receiver == identity {
			out = append(out, m)
		}
	}
	return out, nil
}

func (l *memLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}

func newTestRouter() (*Router, *recorder, *memLog) {
	rec := &recorder{}
	ml := &memLog{}
	return NewRouter(NewRegistry(), NewInboxes(), ml, rec, "server"), rec, ml
}
