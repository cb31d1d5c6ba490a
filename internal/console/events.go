package console

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/supportdesk/host/internal/session"
)

const eventWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Events streams router events to the operator as JSON text frames. The
// first frame is a client_list_changed snapshot so a console that attaches
// late starts from the current state.
// GET /api/events
func (a *API) Events(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("console: event stream upgrade failed: %v", err)
		return nil
	}
	defer conn.Close()

	events, cancel := a.events.Subscribe()
	defer cancel()

	// The console never sends anything; reading detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snapshot := session.Event{
		Type:    session.EventClientListChanged,
		Clients: a.router.Clients(),
		Active:  a.router.Active(),
		Time:    time.Now(),
	}
	if err := writeEvent(conn, snapshot); err != nil {
		return nil
	}

	for {
		select {
		case <-closed:
			return nil
		case e, ok := <-events:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return nil
			}
			if err := writeEvent(conn, e); err != nil {
				log.Printf("console: event stream write failed: %v", err)
				return nil
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, e session.Event) error {
	conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
	return conn.WriteJSON(e)
}
