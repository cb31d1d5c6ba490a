package session

import (
	"log"
	"sync"
	"time"

	"github.com/supportdesk/host/internal/chat"
)

// EventType names an event delivered to the operator console.
type EventType string

const (
	EventClientListChanged EventType = "client_list_changed"
	EventDisplay           EventType = "display"
	EventAuthRejected      EventType = "auth_rejected"
	EventDeliveryFailed    EventType = "delivery_failed"
)

// unreadMarker is appended to a client label while it has unread messages.
const unreadMarker = " 🔔"

// ClientStatus is one row of the operator's client list.
type ClientStatus struct {
	Identity string `json:"identity"`
	Online   bool   `json:"online"`
	Unread   bool   `json:"unread"`
}

// Label renders the identity with the unread marker when needed.
func (c ClientStatus) Label() string {
	if c.Unread {
		return c.Identity + unreadMarker
	}
	return c.Identity
}

// Event is emitted by the router and the connection handler.
//
// For EventDisplay, Identity is the conversation the line belongs to and
// Operator marks lines the operator sent. For EventDeliveryFailed and
// EventAuthRejected it is the identity concerned. EventClientListChanged
// carries the client list and the open conversation ("" when none).
type Event struct {
	Type     EventType      `json:"type"`
	Identity string         `json:"identity,omitempty"`
	Body     string         `json:"body,omitempty"`
	Kind     chat.Kind      `json:"kind,omitempty"`
	Operator bool           `json:"operator,omitempty"`
	Clients  []ClientStatus `json:"clients,omitempty"`
	Active   string         `json:"active,omitempty"`
	Time     time.Time      `json:"time"`
}

// Sink receives events. Publish is called while routing locks are held and
// must not block.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Publish calls f(e).
func (f SinkFunc) Publish(e Event) { f(e) }

// defaultSubscriberBuffer is the per-subscriber queue length.
const defaultSubscriberBuffer = 256

// Hub fans events out to any number of subscribers. A subscriber that falls
// behind loses events rather than stalling the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
	closed bool
}

// NewHub creates a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{subs: make(map[chan Event]struct{}), buffer: buffer}
}

// Publish delivers e to every subscriber without blocking.
func (h *Hub) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			log.Printf("session: subscriber buffer full, dropping %s event", e.Type)
		}
	}
}

// Subscribe returns a channel of future events and a function that ends the
// subscription and closes the channel. The function is safe to call twice.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription. Later Publish calls are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
}
