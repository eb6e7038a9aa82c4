// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package gate

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keywarden/keywarden/internal/auth"
	"github.com/keywarden/keywarden/internal/store"
)

// testClient drives a session over an in-memory pipe.
type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
	server *Server
	done   chan struct{}
}

func newTestClient(t *testing.T, recordStore auth.RecordStore, registry *auth.Registry) *testClient {
	t.Helper()

	engine := auth.NewEngine(auth.EngineConfig{Store: recordStore, Methods: registry})
	tracker := auth.NewTracker(recordStore)
	server := NewServer("", Deps{
		Engine:  engine,
		Tracker: tracker,
		Store:   recordStore,
		Methods: registry,
	})
	t.Cleanup(engine.Wait)

	return attachSession(t, server)
}

// attachSession opens one more client connection against a running
// test server.
func attachSession(t *testing.T, server *Server) *testClient {
	t.Helper()

	client, serverConn := net.Pipe()
	session := NewSession(serverConn, server)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		session.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		client.Close()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("session did not shut down")
		}
	})

	c := &testClient{t: t, conn: client, reader: bufio.NewReader(client), server: server, done: done}
	// Swallow the banner.
	c.readLine()
	c.readLine()
	return c
}

func (c *testClient) sendLine(line string) {
	c.t.Helper()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(c.t, err)
}

func (c *testClient) readLine() string {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck
	line, err := c.reader.ReadString('\n')
	require.NoError(c.t, err)
	return strings.TrimRight(line, "\r\n")
}

func newSessionFixture(t *testing.T) (*testClient, *store.FileStore) {
	t.Helper()
	totpMethod, err := auth.NewTOTPMethod(1, 6)
	require.NoError(t, err)
	registry := auth.NewRegistry(auth.NewKeyMethod(), totpMethod, auth.NewOneTimeKeyMethod())

	recordStore := store.Open(filepath.Join(t.TempDir(), "player-records.yaml"), registry, 10*time.Minute)
	require.NoError(t, recordStore.Load())

	return newTestClient(t, recordStore, registry), recordStore
}

func TestSessionRequiresLogin(t *testing.T) {
	client, _ := newSessionFixture(t)

	client.sendLine("status")
	assert.Equal(t, "log in first: login <name>", client.readLine())
}

func TestSessionLogin(t *testing.T) {
	t.Run("fresh player", func(t *testing.T) {
		client, _ := newSessionFixture(t)

		client.sendLine("login Alice")
		assert.Contains(t, client.readLine(), "no second factor enrolled")
	})

	t.Run("registered player must authenticate", func(t *testing.T) {
		client, recordStore := newSessionFixture(t)
		require.Equal(t, auth.Success,
			recordStore.Add("Alice", "", auth.NewKeyMethod(), []string{"hunter2"}))
		recordStore.Disconnect("Alice")

		client.sendLine("login Alice")
		assert.Contains(t, client.readLine(), "authenticate with")
	})

	t.Run("double login is rejected", func(t *testing.T) {
		client, _ := newSessionFixture(t)

		client.sendLine("login Alice")
		client.readLine()
		client.sendLine("login Bob")
		assert.Equal(t, "already logged in as Alice", client.readLine())
	})

	t.Run("system name is reserved", func(t *testing.T) {
		client, _ := newSessionFixture(t)

		client.sendLine("login system")
		assert.Equal(t, "that name is reserved", client.readLine())

		client.sendLine("login SYSTEM")
		assert.Equal(t, "that name is reserved", client.readLine())

		// The connection stays anonymous, so privileged verbs stay gated.
		client.sendLine("unregister-other Victim")
		assert.Equal(t, "log in first: login <name>", client.readLine())
	})

	t.Run("name held by a live session is refused", func(t *testing.T) {
		client, _ := newSessionFixture(t)

		client.sendLine("login Alice")
		client.readLine()

		second := attachSession(t, client.server)
		second.sendLine("login Alice")
		assert.Equal(t, "that player is already connected", second.readLine())

		// Enrollment routing still targets the original session.
		go client.server.EnrollmentFinished("Alice", auth.Success, "https://tinyurl.com/abc123")
		assert.Contains(t, client.readLine(), "enrollment complete")
	})
}

func TestSessionRegisterAndAuth(t *testing.T) {
	client, recordStore := newSessionFixture(t)

	client.sendLine("login Alice")
	client.readLine()

	client.sendLine("register key hunter2")
	assert.Equal(t, "done", client.readLine())

	client.sendLine("status")
	assert.Equal(t, "registered with key, authenticated", client.readLine())

	recordStore.Disconnect("Alice")

	client.sendLine("auth wrong")
	assert.Equal(t, "wrong key or code", client.readLine())

	client.sendLine("auth hunter2")
	assert.Equal(t, "done", client.readLine())
}

func TestSessionOneTimeKeyFlow(t *testing.T) {
	client, recordStore := newSessionFixture(t)

	client.sendLine("login Alice")
	client.readLine()

	client.sendLine("register onetimekey")
	issued := client.readLine()
	require.True(t, strings.HasPrefix(issued, "registered, your one-time key: "), issued)
	key := strings.TrimPrefix(issued, "registered, your one-time key: ")

	recordStore.Disconnect("Alice")

	client.sendLine("auth " + key)
	next := client.readLine()
	require.True(t, strings.HasPrefix(next, "authenticated, your next one-time key: "), next)
	assert.NotEqual(t, key, strings.TrimPrefix(next, "authenticated, your next one-time key: "))
}

func TestSessionUnregister(t *testing.T) {
	client, _ := newSessionFixture(t)

	client.sendLine("login Alice")
	client.readLine()
	client.sendLine("register key hunter2")
	client.readLine()

	client.sendLine("unregister")
	assert.Equal(t, "done", client.readLine())

	client.sendLine("status")
	assert.Equal(t, "not registered", client.readLine())
}

func TestSessionUnknownCommand(t *testing.T) {
	client, _ := newSessionFixture(t)

	client.sendLine("login Alice")
	client.readLine()
	client.sendLine("frobnicate")
	assert.Equal(t, "unknown command, try: help", client.readLine())
}

func TestSessionQuit(t *testing.T) {
	client, _ := newSessionFixture(t)

	client.sendLine("quit")
	assert.Equal(t, "bye", client.readLine())

	select {
	case <-client.done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not close after quit")
	}
}

func TestEnrollmentNotificationRouting(t *testing.T) {
	t.Run("delivers to the live session", func(t *testing.T) {
		client, _ := newSessionFixture(t)

		client.sendLine("login Alice")
		client.readLine()

		go client.server.EnrollmentFinished("alice", auth.Success, "https://tinyurl.com/abc123")
		assert.Equal(t, "enrollment complete, scan your code: https://tinyurl.com/abc123", client.readLine())
	})

	t.Run("failure delivers the outcome line", func(t *testing.T) {
		client, _ := newSessionFixture(t)

		client.sendLine("login Alice")
		client.readLine()

		go client.server.EnrollmentFinished("Alice", auth.ExternalCallFailed, "")
		assert.Equal(t, outcomeMessage(auth.ExternalCallFailed), client.readLine())
	})

	t.Run("offline player is a no-op", func(t *testing.T) {
		client, _ := newSessionFixture(t)
		client.server.EnrollmentFinished("Nobody", auth.Success, "https://tinyurl.com/abc123")
	})
}
