// Package session holds the live state of the support desk: which clients
// are connected, which messages are waiting for the operator, and which
// conversation the operator currently has open.
package session

import (
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Conn is a live, authenticated client transport.
type Conn interface {
	// ID distinguishes two connections made under the same identity.
	ID() string
	// Send queues a text frame for the client. It must not block.
	Send(frame string) error
	// Close shuts the transport down. Safe to call more than once.
	Close() error
}

// Registry maps identities to their live connection.
// At most one connection is held per identity.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register maps identity to conn and returns the connection it replaced,
// or nil. The caller decides what to do with the replaced connection.
func (r *Registry) Register(identity string, conn Conn) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.conns[identity]
	r.conns[identity] = conn
	return prev
}

// Unregister removes identity. It is a no-op when identity is absent.
func (r *Registry) Unregister(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, identity)
}

// UnregisterConn removes identity only while it still maps to conn, so a
// superseded connection closing late never removes its replacement.
// It reports whether the mapping was removed.
func (r *Registry) UnregisterConn(identity string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[identity]
	if !ok || current != conn {
		return false
	}
	delete(r.conns, identity)
	return true
}

// Lookup returns the connection registered for identity.
func (r *Registry) Lookup(identity string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[identity]
	return conn, ok
}

// ListIdentities returns the connected identities sorted by name.
func (r *Registry) ListIdentities() []string {
	r.mu.RLock()
	ids := lo.Keys(r.conns)
	r.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// Len returns the number of connected identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll closes every registered connection and empties the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := lo.Values(r.conns)
	r.conns = make(map[string]Conn)
	r.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
