// Package server runs the client-facing WebSocket endpoint of the support desk.
//
// Each connection runs the handshake ("identity|token" answered by
// AUTH_SUCCESS or AUTH_FAILED), then reads chat frames until it closes.
// Every accepted frame is appended to the message log and then handed to the
// session router. Errors in one connection never affect another.
//
// Each connection has a token-bucket budget for chat frames. A frame that
// arrives over budget is logged and dropped before parsing: it is neither
// written to the message log nor routed, and the client is not told. The
// connection stays open.
//
// The operator console mounted under /api/ and the /status endpoint answer
// loopback callers only.
package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/supportdesk/host/internal/chat"
	"github.com/supportdesk/host/internal/session"
)

// channelBufferSize is the per-client send queue length. Frames sent to a
// client whose queue is full fail with errSendBufferFull.
const channelBufferSize = 256

// Connection timing.
const (
	// maxFrameSize is the largest frame a client may send.
	maxFrameSize = 512 * 1024

	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// handshakeTimeout bounds the wait for the auth frame.
	handshakeTimeout = 10 * time.Second

	defaultPingInterval = 30 * time.Second
)

// CredentialChecker validates a handshake. auth.Validator implements it.
type CredentialChecker interface {
	Check(identity, token string) error
}

// MessageAppender is the write side of the message log.
// storage.SQLiteStore implements it.
type MessageAppender interface {
	AppendMessage(msg *chat.Message) (int64, error)
}

// Options configures a Server.
type Options struct {
	// Addr is the host:port to listen on.
	Addr string

	// Router receives every accepted frame and tracks connections.
	Router *session.Router

	// Log persists every accepted frame before it is routed.
	Log MessageAppender

	// Validator checks handshakes.
	Validator CredentialChecker

	// PingInterval is the keep-alive period. Clients that answer pings are
	// never timed out, however long they stay silent.
	PingInterval time.Duration

	// FrameRate and FrameBurst throttle chat frames per connection.
	// Zero FrameRate disables throttling.
	FrameRate  float64
	FrameBurst int

	// Console, when set, is mounted at /api/.
	Console http.Handler

	// Version is reported by /status.
	Version string
}

// Server accepts client connections and runs one handler per connection.
type Server struct {
	addr     string
	upgrader websocket.Upgrader

	router    *session.Router
	msgLog    MessageAppender
	validator CredentialChecker
	console   http.Handler

	pingInterval time.Duration
	frameRate    rate.Limit
	frameBurst   int
	version      string
	startTime    time.Time

	mu         sync.RWMutex
	clients    map[*Client]struct{} // every open socket, authenticated or not
	stopped    bool
	httpServer *http.Server
	listenAddr string
	done       chan struct{} // closed when Serve returns
}

// NewServer creates a server. It does not start listening.
func NewServer(opts Options) *Server {
	ping := opts.PingInterval
	if ping <= 0 {
		ping = defaultPingInterval
	}

	frameRate := rate.Inf
	if opts.FrameRate > 0 {
		frameRate = rate.Limit(opts.FrameRate)
	}
	burst := opts.FrameBurst
	if burst <= 0 {
		burst = 1
	}

	return &Server{
		addr: opts.Addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are native apps and scripts, not browser pages.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		router:       opts.Router,
		msgLog:       opts.Log,
		validator:    opts.Validator,
		console:      opts.Console,
		pingInterval: ping,
		frameRate:    frameRate,
		frameBurst:   burst,
		version:      opts.Version,
		startTime:    time.Now(),
		clients:      make(map[*Client]struct{}),
	}
}

// Addr returns the address the server is listening on, or the configured
// address before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listenAddr != "" {
		return s.listenAddr
	}
	return s.addr
}

// ClientCount returns the number of open sockets, including ones still in the handshake.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Router returns the session router frames are dispatched to.
func (s *Server) Router() *session.Router {
	return s.router
}

// readDeadline is how long an authenticated client may go without a frame or pong.
func (s *Server) readDeadline() time.Duration {
	return 2 * s.pingInterval
}

func (s *Server) addClient(c *Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.clients[c] = struct{}{}
	return true
}

func (s *Server) removeClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}
