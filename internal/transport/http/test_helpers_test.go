package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/metrics"
	"github.com/vovakirdan/linechat-server/internal/store"
)

// startTestServer runs a hub and the HTTP server around it. audit may be nil.
func startTestServer(t *testing.T, audit store.AuditLog) (*httptest.Server, *core.Hub) {
	t.Helper()

	disabledLogger := zerolog.Nop()
	reg := prometheus.NewRegistry()
	hub := core.NewHub(core.DefaultOptions(), audit, metrics.New(reg), &disabledLogger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	cfg := config.Default()
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second

	server := NewServer(hub, audit, cfg, reg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, hub
}

// nopConn is a core.Conn that accepts and discards every line.
type nopConn struct{}

func (nopConn) WriteLine(string) error { return nil }
func (nopConn) Close() error           { return nil }
func (nopConn) RemoteAddr() string     { return "192.0.2.1" }
