package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/linechat-server/internal/store"
	"github.com/vovakirdan/linechat-server/internal/store/sqlite"
)

func getJSON(t *testing.T, target string, wantStatus int, out any) {
	t.Helper()

	resp, err := http.Get(target)
	if err != nil {
		t.Fatalf("GET %s: %v", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: expected status %d, got %d", target, wantStatus, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", target, err)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t, nil)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if resp.Header.Get(HeaderRequestID) == "" {
		t.Fatal("expected a request id header")
	}
}

func TestChannelsAndSessionsSnapshot(t *testing.T) {
	ts, hub := startTestServer(t, nil)

	alice, err := hub.Register(nopConn{}, "alice")
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
	bob, err := hub.Register(nopConn{}, "bob")
	if err != nil {
		t.Fatalf("register bob: %v", err)
	}
	hub.HandleLine(alice, "alice: /join #ops")
	hub.HandleLine(alice, "alice: /mode +i")
	hub.HandleLine(alice, "alice: /invite bob")
	hub.HandleLine(bob, "bob: /join #ops")

	var channels ChannelsResponse
	getJSON(t, ts.URL+"/api/channels", http.StatusOK, &channels)
	if len(channels.Channels) != 2 {
		t.Fatalf("expected 2 channels, got %+v", channels.Channels)
	}
	ops := channels.Channels[1]
	if ops.Name != "#ops" || ops.Mode != "invite-only" || ops.Admin != "alice" || len(ops.Members) != 2 {
		t.Fatalf("unexpected #ops snapshot: %+v", ops)
	}

	var one struct {
		Name    string   `json:"name"`
		Invites []string `json:"invites"`
	}
	getJSON(t, ts.URL+"/api/channels/"+url.PathEscape("#ops"), http.StatusOK, &one)
	if one.Name != "#ops" || len(one.Invites) != 1 || one.Invites[0] != "bob" {
		t.Fatalf("unexpected channel: %+v", one)
	}
	getJSON(t, ts.URL+"/api/channels/"+url.PathEscape("#nope"), http.StatusNotFound, nil)

	var sessions SessionsResponse
	getJSON(t, ts.URL+"/api/sessions", http.StatusOK, &sessions)
	if len(sessions.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions.Sessions))
	}
	if s := sessions.Sessions[0]; s.Nick != "alice" || !s.Admin || s.Channel != "#ops" {
		t.Fatalf("unexpected alice session: %+v", s)
	}
}

func TestAuditEndpoint(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		ts, _ := startTestServer(t, nil)
		getJSON(t, ts.URL+"/api/audit", http.StatusNotFound, nil)
	})

	t.Run("sqlite", func(t *testing.T) {
		audit, err := sqlite.New(t.TempDir() + "/audit.db")
		if err != nil {
			t.Fatalf("open audit store: %v", err)
		}
		defer audit.Close()

		base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		for i, action := range []store.AuditAction{store.ActionCreate, store.ActionKick, store.ActionMute} {
			ev := store.AuditEvent{At: base.Add(time.Duration(i) * time.Second), Actor: "alice", Action: action, Channel: "#ops"}
			if err := audit.Record(context.Background(), ev); err != nil {
				t.Fatalf("record: %v", err)
			}
		}

		ts, _ := startTestServer(t, audit)

		var resp AuditResponse
		getJSON(t, ts.URL+"/api/audit?limit=2", http.StatusOK, &resp)
		if len(resp.Events) != 2 || resp.Events[0].Action != "mute" || resp.Events[1].Action != "kick" {
			t.Fatalf("unexpected events: %+v", resp.Events)
		}
		if resp.Events[0].At != "2024-05-01T10:00:02Z" {
			t.Fatalf("unexpected timestamp %q", resp.Events[0].At)
		}

		getJSON(t, ts.URL+"/api/audit?limit=zero", http.StatusBadRequest, nil)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	ts, hub := startTestServer(t, nil)
	if _, err := hub.Register(nopConn{}, "alice"); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "linechat_sessions 1") {
		t.Fatalf("expected session gauge in output:\n%s", body)
	}
}
