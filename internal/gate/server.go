// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

// Package gate provides the line-protocol command surface: one TCP
// connection per player session, verbs mapped onto engine operations,
// and connection setup/teardown delivered to the session continuity
// tracker as lifecycle signals.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/keywarden/keywarden/internal/auth"
)

// Server is the TCP gate server.
type Server struct {
	addr     string
	listener net.Listener
	deps     Deps
	mu       sync.RWMutex
	sessions map[string]*Session // login name (lower-cased) → live session
}

// Deps are the gate's collaborators.
type Deps struct {
	Engine  *auth.Engine
	Tracker *auth.Tracker
	Store   auth.RecordStore
	Methods *auth.Registry

	// OnConnect is invoked per accepted connection; used for metrics.
	OnConnect func()
}

// NewServer creates a gate server.
func NewServer(addr string, deps Deps) *Server {
	return &Server{
		addr:     addr,
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run starts the server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	slog.Info("gate server started", "addr", listener.Addr())

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			slog.Debug("error closing listener", "error", err)
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				slog.Error("accept failed", "error", err)
				continue
			}
		}
		if s.deps.OnConnect != nil {
			s.deps.OnConnect()
		}
		session := NewSession(conn, s)
		go session.Run(ctx)
	}
}

// EnrollmentFinished implements auth.Notifier: asynchronous enrollment
// results are routed to the player's live session, if any.
func (s *Server) EnrollmentFinished(playerID string, outcome auth.Outcome, url string) {
	s.mu.RLock()
	session := s.sessions[auth.Key(playerID)]
	s.mu.RUnlock()

	if session == nil {
		slog.Info("enrollment finished for offline player",
			"player", playerID, "outcome", outcome.String())
		return
	}

	if outcome == auth.Success {
		session.send("enrollment complete, scan your code: " + url)
		return
	}
	session.send(outcomeMessage(outcome))
}

// attach claims a login name for a session. A name already held by a
// live session is refused so notifications cannot be redirected by a
// second connection claiming the same player.
func (s *Server) attach(name string, session *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[auth.Key(name)]; ok && existing != session {
		return false
	}
	s.sessions[auth.Key(name)] = session
	return true
}

func (s *Server) detach(name string, session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[auth.Key(name)] == session {
		delete(s.sessions, auth.Key(name))
	}
}
