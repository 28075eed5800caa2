package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vovakirdan/linechat-server/internal/store"
)

const (
	waitTimeout = 2 * time.Second
	testAddr    = "198.51.100.10"
)

// fakeConn records every written line. Multi-line writes are split so tests
// can match individual lines.
type fakeConn struct {
	addr   string
	lines  chan string
	failed atomic.Bool
	writes atomic.Int32

	mu     sync.Mutex
	closed bool
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{addr: addr, lines: make(chan string, 1024)}
}

func (c *fakeConn) WriteLine(line string) error {
	c.writes.Add(1)
	if c.failed.Load() {
		return errors.New("broken pipe")
	}
	for _, part := range strings.Split(line, "\n") {
		c.lines <- part
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) RemoteAddr() string { return c.addr }

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// testClient bundles a registered session with its connection.
type testClient struct {
	id   SessionID
	nick string
	conn *fakeConn
}

func newTestHub(t *testing.T, mutate func(*Options)) *Hub {
	t.Helper()
	opts := DefaultOptions()
	opts.RetryBackoff = time.Millisecond
	if mutate != nil {
		mutate(&opts)
	}
	return NewHub(opts, nil, nil, nil)
}

// connect registers nick and discards the greeting menus.
func connect(t *testing.T, h *Hub, nick string) *testClient {
	t.Helper()
	conn := newFakeConn(testAddr)
	id, err := h.Register(conn, nick)
	if err != nil {
		t.Fatalf("register %s: %v", nick, err)
	}
	c := &testClient{id: id, nick: nick, conn: conn}
	settle(t, h, c)
	return c
}

// send feeds one line in the "nick: payload" wire format.
func send(t *testing.T, h *Hub, c *testClient, payload string) bool {
	t.Helper()
	return h.HandleLine(c.id, c.nick+": "+payload)
}

// settle waits until everything queued for c so far has been written and
// throws it away.
func settle(t *testing.T, h *Hub, c *testClient) {
	t.Helper()
	marker := "--settle--"
	h.Notify(c.id, marker)
	mustLine(t, c, marker)
}

// mustLine waits for a line containing substr, skipping others.
func mustLine(t *testing.T, c *testClient, substr string) string {
	t.Helper()

	deadline := time.After(waitTimeout)
	for {
		select {
		case line := <-c.conn.lines:
			if strings.Contains(line, substr) {
				return line
			}
		case <-deadline:
			t.Fatalf("%s: expected line containing %q not received", c.nick, substr)
			return ""
		}
	}
}

// assertQuiet fails if a line containing substr was queued for c before
// this call. Broadcasts enqueue synchronously, so a marker sent now is
// written after anything they produced.
func assertQuiet(t *testing.T, h *Hub, c *testClient, substr string) {
	t.Helper()
	marker := "--quiet--"
	h.Notify(c.id, marker)

	deadline := time.After(waitTimeout)
	for {
		select {
		case line := <-c.conn.lines:
			if line == marker {
				return
			}
			if strings.Contains(line, substr) {
				t.Fatalf("%s: unexpected line %q", c.nick, line)
			}
		case <-deadline:
			t.Fatalf("%s: marker not received", c.nick)
			return
		}
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", what)
}

func mustSession(t *testing.T, h *Hub, c *testClient) SessionInfo {
	t.Helper()
	info, ok := h.Session(c.id)
	if !ok {
		t.Fatalf("session %s not registered", c.nick)
	}
	return info
}

// assertNoDangling checks that every session sits on an existing channel.
func assertNoDangling(t *testing.T, h *Hub) {
	t.Helper()
	existing := map[string]bool{}
	for _, ch := range h.Channels() {
		existing[ch.Name] = true
	}
	for _, s := range h.Sessions() {
		if !existing[s.Channel] {
			t.Fatalf("session %s points at missing channel %q", s.Nick, s.Channel)
		}
	}
}

// memoryAudit is an in-memory store.AuditLog.
type memoryAudit struct {
	mu     sync.Mutex
	events []store.AuditEvent
}

func (m *memoryAudit) Record(_ context.Context, ev store.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memoryAudit) Recent(_ context.Context, limit int) ([]store.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.AuditEvent, 0, len(m.events))
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

func (m *memoryAudit) Close() error { return nil }

func (m *memoryAudit) actions() []store.AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.AuditAction, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Action)
	}
	return out
}
