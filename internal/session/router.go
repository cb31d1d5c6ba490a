package session

import (
	"log"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/supportdesk/host/internal/chat"
	apperrors "github.com/supportdesk/host/internal/errors"
)

// MessageLog is the durable history the router records replies in and
// answers history queries from. storage.SQLiteStore implements it.
type MessageLog interface {
	AppendMessage(msg *chat.Message) (int64, error)
	QueryMessages(identity string) ([]chat.Message, error)
}

// Router decides what happens to every message: shown live when its
// conversation is the one the operator has open, queued otherwise.
//
// All routing decisions and activations run under one mutex, so switching
// the active conversation never interleaves with an inbound decision.
type Router struct {
	mu     sync.Mutex
	active string // guarded by mu; "" when no conversation is open

	registry *Registry
	inboxes  *Inboxes
	log      MessageLog
	sink     Sink
	operator string

	timeNow func() time.Time
}

// NewRouter wires the router to its collaborators. operator is the name
// clients address the operator by; replies are logged with it as sender.
func NewRouter(registry *Registry, inboxes *Inboxes, msgLog MessageLog, sink Sink, operator string) *Router {
	if sink == nil {
		sink = SinkFunc(func(Event) {})
	}
	return &Router{
		registry: registry,
		inboxes:  inboxes,
		log:      msgLog,
		sink:     sink,
		operator: operator,
		timeNow:  time.Now,
	}
}

// Registry returns the connection registry the router delivers through.
func (r *Router) Registry() *Registry { return r.registry }

// Inboxes returns the inbox manager the router queues into.
func (r *Router) Inboxes() *Inboxes { return r.inboxes }

// Operator returns the operator's name.
func (r *Router) Operator() string { return r.operator }

// Active returns the identity whose conversation is open, or "".
func (r *Router) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// ConversationKey returns the client identity a message belongs to: the
// receiver when it names another client, otherwise the sender.
func (r *Router) ConversationKey(msg chat.Message) string {
	if msg.Receiver != "" && msg.Receiver != r.operator {
		return msg.Receiver
	}
	return msg.Sender
}

// Activate opens identity's conversation. Its queued messages are emitted as
// display events in arrival order and returned. Activating the already
// active identity drains again, which yields nothing. identity need not be
// connected.
func (r *Router) Activate(identity string) []chat.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != identity {
		log.Printf("session: active conversation %q -> %q", r.active, identity)
	}
	r.active = identity

	drained := r.inboxes.Drain(identity)
	for _, msg := range drained {
		r.emitDisplay(identity, msg)
	}
	r.emitClientList()
	return drained
}

// Deactivate closes the open conversation, if any.
func (r *Router) Deactivate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == "" {
		return
	}
	log.Printf("session: active conversation %q closed", r.active)
	r.active = ""
	r.emitClientList()
}

// RouteInbound shows msg live when its sender or its conversation is the
// active one, otherwise queues it under its conversation key and announces
// the new unread state. Persisting msg is the caller's concern and happens
// whichever branch is taken.
func (r *Router) RouteInbound(msg chat.Message) {
	key := r.ConversationKey(msg)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != "" && (msg.Sender == r.active || key == r.active) {
		r.emitDisplay(r.active, msg)
		return
	}

	r.inboxes.Enqueue(key, msg)
	r.emitClientList()
}

// SendReply writes "Server: body" to identity's connection and emits it as an
// operator display line. When identity is not connected it emits
// delivery_failed, writes nothing and returns a delivery.client_offline
// error. Nothing is queued for later delivery.
func (r *Router) SendReply(identity, body string) error {
	if body == "" {
		return apperrors.InvalidMessage("reply body cannot be empty")
	}

	conn, ok := r.registry.Lookup(identity)
	if !ok {
		log.Printf("session: reply to %s dropped, client offline", identity)
		r.publish(Event{Type: EventDeliveryFailed, Identity: identity})
		return apperrors.ClientOffline(identity)
	}

	frame := chat.ReplyPrefix + body
	if err := conn.Send(frame); err != nil {
		log.Printf("session: reply to %s failed: %v", identity, err)
		r.publish(Event{Type: EventDeliveryFailed, Identity: identity})
		return apperrors.SendFailed(identity, err)
	}

	msg := chat.NewMessage(r.operator, identity, body)
	msg.Timestamp = r.timeNow()
	if r.log != nil {
		if _, err := r.log.AppendMessage(&msg); err != nil {
			log.Printf("session: failed to log reply to %s: %v", identity, err)
		}
	}

	r.publish(Event{
		Type:     EventDisplay,
		Identity: identity,
		Body:     frame,
		Kind:     msg.Kind,
		Operator: true,
	})
	return nil
}

// QueryHistory returns every logged message identity sent or received, oldest first.
func (r *Router) QueryHistory(identity string) ([]chat.Message, error) {
	if r.log == nil {
		return []chat.Message{}, nil
	}
	msgs, err := r.log.QueryMessages(identity)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "history query failed", err)
	}
	return msgs, nil
}

// Clients returns every connected identity and every identity with unread
// messages, sorted by identity.
func (r *Router) Clients() []ClientStatus {
	online := r.registry.ListIdentities()
	unread := r.inboxes.Unread()

	ids := lo.Union(online, unread)
	slices.Sort(ids)

	return lo.Map(ids, func(id string, _ int) ClientStatus {
		return ClientStatus{
			Identity: id,
			Online:   lo.Contains(online, id),
			Unread:   lo.Contains(unread, id),
		}
	})
}

// ClientConnected records a newly authenticated connection and announces it.
// It returns the connection that identity previously had, if any.
func (r *Router) ClientConnected(identity string, conn Conn) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.registry.Register(identity, conn)
	r.inboxes.Ensure(identity)
	r.emitClientList()
	return prev
}

// ClientDisconnected removes conn from the registry if it is still the
// connection registered for identity, and announces the change.
func (r *Router) ClientDisconnected(identity string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registry.UnregisterConn(identity, conn) {
		r.emitClientList()
	}
}

// AuthRejected announces a failed handshake.
func (r *Router) AuthRejected(identity string) {
	r.publish(Event{Type: EventAuthRejected, Identity: identity})
}

// emitDisplay and emitClientList are called with r.mu held so event order
// matches decision order.
func (r *Router) emitDisplay(identity string, msg chat.Message) {
	r.publish(Event{
		Type:     EventDisplay,
		Identity: identity,
		Body:     msg.Display(),
		Kind:     msg.Kind,
	})
}

func (r *Router) emitClientList() {
	r.publish(Event{Type: EventClientListChanged, Clients: r.Clients(), Active: r.active})
}

func (r *Router) publish(e Event) {
	e.Time = r.timeNow()
	r.sink.Publish(e)
}
