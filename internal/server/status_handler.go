package server

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"
)

// StatusResponse is the body of GET /status, read by the "status" command.
type StatusResponse struct {
	ListeningAddress string `json:"listening_address"`

	// OpenConnections counts every socket, including unauthenticated ones.
	OpenConnections int `json:"open_connections"`

	// ConnectedClients counts authenticated identities.
	ConnectedClients int `json:"connected_clients"`

	// ActiveConversation is the identity the operator has open, if any.
	ActiveConversation string `json:"active_conversation,omitempty"`

	// UnreadClients lists identities with queued messages, sorted.
	UnreadClients []string `json:"unread_clients"`

	Operator      string `json:"operator"`
	Version       string `json:"version,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// StatusHandler serves /status. Only loopback callers are answered.
type StatusHandler struct {
	server *Server
}

// NewStatusHandler creates a status handler for s.
func NewStatusHandler(s *Server) *StatusHandler {
	return &StatusHandler{server: s}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !isLoopbackRequest(r) {
		http.Error(w, "Forbidden: status endpoint is local-only", http.StatusForbidden)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	router := h.server.router
	resp := StatusResponse{
		ListeningAddress:   h.server.Addr(),
		OpenConnections:    h.server.ClientCount(),
		ConnectedClients:   router.Registry().Len(),
		ActiveConversation: router.Active(),
		UnreadClients:      router.Inboxes().Unread(),
		Operator:           router.Operator(),
		Version:            h.server.version,
		UptimeSeconds:      int64(time.Since(h.server.startTime).Seconds()),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("server: failed to encode status: %v", err)
	}
}

// isLoopbackRequest reports whether r came from 127.0.0.0/8 or ::1.
func isLoopbackRequest(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		log.Printf("server: failed to parse RemoteAddr %q: %v", r.RemoteAddr, err)
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}
