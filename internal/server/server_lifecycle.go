package server

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
)

// Start listens and serves until Stop. It blocks; use StartAsync to learn
// about listen failures before continuing.
func (s *Server) Start() error {
	if err := <-s.StartAsync(); err != nil {
		return err
	}
	<-s.serveDone()
	return nil
}

// StartAsync binds the listener and serves in a goroutine. The returned
// channel yields nil once the listener is bound, or the bind error.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		errCh <- fmt.Errorf("failed to listen on %s: %w", s.addr, err)
		close(errCh)
		return errCh
	}

	httpServer := &http.Server{Handler: s.createMux()}
	done := make(chan struct{})

	s.mu.Lock()
	s.httpServer = httpServer
	s.listenAddr = ln.Addr().String()
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		log.Printf("server: listening on %s", ln.Addr())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server: serve failed: %v", err)
		}
	}()

	errCh <- nil
	close(errCh)
	return errCh
}

func (s *Server) serveDone() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// Stop closes every client connection and the listener. It is safe to call
// more than once.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true

	for client := range s.clients {
		client.closeSend()
	}
	s.clients = make(map[*Client]struct{})
	httpServer := s.httpServer
	s.mu.Unlock()

	if httpServer != nil {
		return httpServer.Close()
	}
	return nil
}
