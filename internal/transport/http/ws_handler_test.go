package http

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

type wsClient struct {
	t    *testing.T
	ctx  context.Context
	conn *websocket.Conn
}

func dialWS(t *testing.T, ctx context.Context, baseURL, nick string) *wsClient {
	t.Helper()

	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", nick, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	c := &wsClient{t: t, ctx: ctx, conn: conn}
	c.send(nick)
	c.expect("Channels:")
	return c
}

func (c *wsClient) send(line string) {
	c.t.Helper()
	if err := c.conn.Write(c.ctx, websocket.MessageText, []byte(line)); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

// expect reads frames until one contains substr.
func (c *wsClient) expect(substr string) string {
	c.t.Helper()
	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			c.t.Fatalf("waiting for %q: %v", substr, err)
		}
		if line := string(data); strings.Contains(line, substr) {
			return line
		}
	}
}

func TestWebSocketChat(t *testing.T) {
	ts, hub := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialWS(t, ctx, ts.URL, "alice")
	bob := dialWS(t, ctx, ts.URL, "bob")

	alice.send("alice: /join #web")
	alice.expect("You are the admin!")
	bob.send("bob: /join #web")
	alice.expect("bob joined channel #web!")

	alice.send("alice: hi there")
	if line := bob.expect("hi there"); !strings.HasSuffix(line, ": hi there") {
		t.Fatalf("unexpected chat frame %q", line)
	}

	bob.send("bob: /quit")
	bob.expect("Goodbye!")
	alice.expect("bob left the server.")

	if n := len(hub.Sessions()); n != 1 {
		t.Fatalf("expected one session, got %d", n)
	}
}

func TestWebSocketMenuFramesPerLine(t *testing.T) {
	ts, hub := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if err := conn.Write(ctx, websocket.MessageText, []byte("carol")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, first, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(first), "\n") {
		t.Fatalf("expected one line per frame, got %q", first)
	}

	sessions := hub.Sessions()
	if len(sessions) != 1 || sessions[0].Nick != "carol" {
		t.Fatalf("expected carol registered over /ws, got %+v", sessions)
	}
}
