package server

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/supportdesk/host/internal/auth"
	"github.com/supportdesk/host/internal/chat"
	apperrors "github.com/supportdesk/host/internal/errors"
)

var (
	errClientClosed   = errors.New("client connection closed")
	errSendBufferFull = errors.New("client send buffer full")
)

// Client is one WebSocket connection. It implements session.Conn once
// authenticated. Frames queued with Send are written by writePump; the
// socket itself is read only by readPump.
type Client struct {
	server *Server
	conn   *websocket.Conn
	id     string

	// identity is set by readPump after a successful handshake and never
	// changes afterwards.
	identity string

	send     chan string
	done     chan struct{}
	sendOnce sync.Once

	limiter *rate.Limiter
}

func newClient(s *Server, conn *websocket.Conn) *Client {
	return &Client{
		server:  s,
		conn:    conn,
		id:      uuid.NewString(),
		send:    make(chan string, channelBufferSize),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(s.frameRate, s.frameBurst),
	}
}

// ID returns a per-connection identifier, distinct across reconnects.
func (c *Client) ID() string {
	return c.id
}

// Send queues a text frame without blocking.
func (c *Client) Send(frame string) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return errClientClosed
	default:
		return errSendBufferFull
	}
}

// Close ends the connection after flushing frames already queued.
func (c *Client) Close() error {
	c.closeSend()
	return nil
}

// closeSend signals writePump to flush and exit. Safe to call more than once.
func (c *Client) closeSend() {
	c.sendOnce.Do(func() {
		close(c.done)
	})
}

// writePump writes queued frames and keep-alive pings until the client is
// closed. Frames queued before the close, such as AUTH_FAILED, are still
// written ahead of the close frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.server.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.flush()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				log.Printf("server: write on connection %s failed: %v", c.id, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) flush() {
	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(frame string) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// readPump runs the handshake and then the frame loop. It owns the
// connection's registration: whatever ends the loop, the registry entry is
// released before the socket closes.
func (c *Client) readPump() {
	defer func() {
		if c.identity != "" {
			c.server.router.ClientDisconnected(c.identity, c)
		}
		c.server.removeClient(c)
		c.closeSend()
		log.Printf("server: %s disconnected (%d remaining)", c.label(), c.server.ClientCount())
	}()

	c.conn.SetReadLimit(maxFrameSize)

	if !c.handshake() {
		return
	}

	deadline := c.server.readDeadline()
	c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(deadline))
		return nil
	})

	peer := chat.Peer{Identity: c.identity, Operator: c.server.router.Operator()}
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure) {
				log.Printf("server: %v", apperrors.Wrap(apperrors.CodeServerConnectionLost, "read from "+c.label()+" failed", err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(deadline))

		if !c.limiter.Allow() {
			log.Printf("server: discarded frame from %s: %v", c.identity,
				apperrors.New(apperrors.CodeFrameRateLimited, "frame rate exceeded"))
			continue
		}
		c.handleFrame(string(data), peer)
	}
}

// handshake reads the auth frame and answers it. It reports whether the
// connection is authenticated and registered.
func (c *Client) handshake() bool {
	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		log.Printf("server: handshake read from %s failed: %v", c.conn.RemoteAddr(), err)
		return false
	}

	frame, err := chat.ParseFrame(chat.PhaseAuth, string(data), chat.Peer{})
	if err == nil {
		err = auth.ValidateIdentity(frame.Identity)
	}
	if err == nil {
		err = c.server.validator.Check(frame.Identity, frame.Token)
	}
	if err != nil {
		log.Printf("server: handshake from %s rejected: %v", c.conn.RemoteAddr(), err)
		c.Send(chat.AuthFailed)
		c.server.router.AuthRejected(frame.Identity)
		return false
	}

	// AUTH_SUCCESS is queued before registration so it precedes any reply.
	if err := c.Send(chat.AuthSuccess); err != nil {
		return false
	}
	c.identity = frame.Identity
	if prev := c.server.router.ClientConnected(c.identity, c); prev != nil && prev != c {
		log.Printf("server: %s reconnected, closing previous connection", c.identity)
		prev.Close()
	}
	log.Printf("server: %s authenticated (%d connected)", c.identity, c.server.router.Registry().Len())
	return true
}

// handleFrame persists and routes one chat frame. Bad frames are logged and
// dropped; the connection stays open.
func (c *Client) handleFrame(raw string, peer chat.Peer) {
	frame, err := chat.ParseFrame(chat.PhaseMessage, raw, peer)
	if err != nil {
		log.Printf("server: discarded frame from %s: %v", c.identity, err)
		return
	}

	msg := frame.Message
	msg.Timestamp = time.Now()
	if c.server.msgLog != nil {
		if _, err := c.server.msgLog.AppendMessage(&msg); err != nil {
			log.Printf("server: %v", apperrors.SaveFailed(fmt.Sprintf("%s frame from %s", frame.Type, c.identity), err))
		}
	}
	c.server.router.RouteInbound(msg)
}

func (c *Client) label() string {
	if c.identity != "" {
		return c.identity
	}
	return c.conn.RemoteAddr().String()
}
