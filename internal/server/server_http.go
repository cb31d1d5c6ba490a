package server

import (
	"log"
	"net/http"

	apperrors "github.com/supportdesk/host/internal/errors"
)

// createMux creates the HTTP mux with all endpoints.
func (s *Server) createMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/status", NewStatusHandler(s))

	if s.console != nil {
		mux.Handle("/api/", loopbackOnly(s.console))
		log.Printf("server: operator console registered at /api/ (local-only)")
	}

	return mux
}

// handleWebSocket upgrades a request on /ws and starts the connection's
// read and write loops. Authentication happens in-band on the first frame.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: %v", apperrors.Wrap(apperrors.CodeServerUpgradeFailed, "upgrade from "+r.RemoteAddr+" failed", err))
		return
	}

	client := newClient(s, conn)
	if !s.addClient(client) {
		conn.Close()
		return
	}
	log.Printf("server: connection from %s (%d open)", r.RemoteAddr, s.ClientCount())

	go client.writePump()
	go client.readPump()
}

// loopbackOnly rejects requests that did not come from this machine. The
// operator console reads every transcript and replies as the operator.
func loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLoopbackRequest(r) {
			log.Printf("server: console request from %s refused", r.RemoteAddr)
			http.Error(w, "Forbidden: operator console is local-only", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
