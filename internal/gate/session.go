// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package gate

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/keywarden/keywarden/internal/auth"
)

// Session handles a single gate connection.
type Session struct {
	conn     net.Conn
	reader   *bufio.Reader
	server   *Server
	connID   ulid.ULID
	player   string
	address  string
	writeMu  sync.Mutex
	quitting bool
}

// NewSession creates a session handler for a connection.
func NewSession(conn net.Conn, server *Server) *Session {
	return &Session{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		server:  server,
		connID:  ulid.Make(),
		address: remoteHost(conn),
	}
}

// Run processes the connection until closed. Connection teardown is the
// disconnect lifecycle signal for the logged-in player.
func (s *Session) Run(ctx context.Context) {
	defer func() {
		if s.player != "" {
			s.server.deps.Tracker.Disconnected(s.player)
			s.server.detach(s.player, s)
		}
		if err := s.conn.Close(); err != nil {
			slog.Debug("error closing connection", "error", err)
		}
	}()

	s.send("keywarden gate")
	s.send("use: login <name>")

	lineCh := make(chan string)
	errCh := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			line, err := s.reader.ReadString('\n')
			if err != nil {
				errCh <- err
				return
			}
			select {
			case lineCh <- strings.TrimSpace(line):
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-errCh:
			if !errors.Is(err, io.EOF) {
				slog.Debug("connection read error", "conn_id", s.connID.String(), "error", err)
			}
			return

		case line := <-lineCh:
			s.processLine(ctx, line)
			if s.quitting {
				return
			}
		}
	}
}

func (s *Session) processLine(ctx context.Context, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	if verb == "quit" {
		s.send("bye")
		s.quitting = true
		return
	}
	if verb == "login" {
		s.handleLogin(args)
		return
	}
	if s.player == "" {
		s.send("log in first: login <name>")
		return
	}

	switch verb {
	case "register":
		s.handleRegister(ctx, args)
	case "register-other":
		s.handleRegisterOther(ctx, args)
	case "auth":
		s.handleAuth(ctx, args)
	case "unregister":
		s.report(s.server.deps.Engine.Unregister(ctx, s.player))
	case "unregister-other":
		if len(args) != 1 {
			s.send("use: unregister-other <player>")
			return
		}
		s.report(s.server.deps.Engine.UnregisterFor(ctx, s.player, args[0]))
	case "status":
		s.handleStatus()
	case "help":
		s.handleHelp()
	default:
		s.send("unknown command, try: help")
	}
}

// handleLogin binds the connection to a player and delivers the connect
// lifecycle signal, which may take the reauthentication fast path.
func (s *Session) handleLogin(args []string) {
	if len(args) != 1 {
		s.send("use: login <name>")
		return
	}
	if s.player != "" {
		s.send("already logged in as " + s.player)
		return
	}

	name := args[0]
	if auth.Key(name) == auth.SystemPrincipal {
		s.send("that name is reserved")
		return
	}
	if !s.server.attach(name, s) {
		s.send("that player is already connected")
		return
	}
	s.player = name
	s.server.deps.Tracker.Connected(name, s.address)

	rec, ok := s.server.deps.Store.Get(name)
	switch {
	case !ok:
		s.send("hello " + name + ", no second factor enrolled (see: help)")
	case rec.Authenticated:
		s.send("welcome back " + name + ", session re-authenticated")
	default:
		s.send("hello " + name + ", authenticate with: auth <proof>")
	}
}

func (s *Session) handleRegister(ctx context.Context, args []string) {
	if len(args) == 0 {
		s.send("use: register <method> [args...]")
		return
	}
	methodName := args[0]

	method := s.server.deps.Methods.Resolve(methodName)
	_, enrollable := method.(auth.Enrollable)

	out := s.server.deps.Engine.Register(ctx, s.player, s.address, methodName, args[1:])
	if out == auth.Success && enrollable {
		s.send("processing, your enrollment link is on its way")
		return
	}
	if out == auth.Success {
		if rec, ok := s.server.deps.Store.Get(s.player); ok && rec.Method == "onetimekey" {
			s.send("registered, your one-time key: " + rec.Secret)
			return
		}
	}
	s.report(out)
}

func (s *Session) handleRegisterOther(ctx context.Context, args []string) {
	if len(args) < 2 {
		s.send("use: register-other <player> <method> [args...]")
		return
	}
	s.report(s.server.deps.Engine.RegisterFor(ctx, s.player, args[0], args[1], args[2:]))
}

func (s *Session) handleAuth(ctx context.Context, args []string) {
	out := s.server.deps.Engine.Authenticate(ctx, s.player, args)
	if out == auth.Success {
		if rec, ok := s.server.deps.Store.Get(s.player); ok && rec.Method == "onetimekey" {
			s.send("authenticated, your next one-time key: " + rec.Secret)
			return
		}
	}
	s.report(out)
}

func (s *Session) handleStatus() {
	rec, ok := s.server.deps.Store.Get(s.player)
	if !ok {
		s.send("not registered")
		return
	}
	state := "not authenticated"
	if rec.Authenticated {
		state = "authenticated"
	}
	s.send("registered with " + rec.Method + ", " + state)
}

func (s *Session) handleHelp() {
	s.send("commands:")
	s.send("  register <method> [args...]")
	s.send("  register-other <player> <method> [args...]")
	s.send("  auth <proof...>")
	s.send("  unregister")
	s.send("  unregister-other <player>")
	s.send("  status | help | quit")
	s.send("methods:")
	for _, name := range s.server.deps.Methods.Names() {
		method := s.server.deps.Methods.Resolve(name)
		s.send("  " + name + " " + method.HelpLine())
		if line := method.DelegatedHelpLine(); line != "" {
			s.send("  " + name + " (for others) " + line)
		}
	}
}

func (s *Session) report(out auth.Outcome) {
	s.send(outcomeMessage(out))
}

// send writes one protocol line. Sessions are written from both the
// command loop and enrollment notifications, hence the write lock.
func (s *Session) send(msg string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.Write([]byte(msg + "\r\n")); err != nil {
		slog.Debug("failed to write to connection", "conn_id", s.connID.String(), "error", err)
	}
}

// remoteHost strips the port from the peer address; the continuity fast
// path compares hosts, not ephemeral ports.
func remoteHost(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
