package app

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/config"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	logger := zerolog.Nop()
	cfg := config.Default()
	cfg.MaxClients = 1

	if _, err := New(&cfg, &logger); err == nil || !strings.Contains(err.Error(), "max_clients") {
		t.Fatalf("expected config validation error, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	logger := zerolog.Nop()
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second
	cfg.AuditDBPath = filepath.Join(t.TempDir(), "audit.db")

	a, err := New(&cfg, &logger)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReportsListenError(t *testing.T) {
	logger := zerolog.Nop()
	cfg := config.Default()
	cfg.Addr = "256.0.0.1:1"
	cfg.HTTPAddr = ""

	a, err := New(&cfg, &logger)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Run(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}

func TestRunClosesTCPSessionsBeforeReturning(t *testing.T) {
	logger := zerolog.Nop()
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.HTTPAddr = ""
	cfg.ShutdownTimeout = time.Second
	cfg.AuditDBPath = filepath.Join(t.TempDir(), "audit.db")

	a, err := New(&cfg, &logger)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for a.tcp.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("tcp listener did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn, err := net.Dial("tcp", a.tcp.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := io.WriteString(conn, "alice\n"); err != nil {
		t.Fatalf("write nick: %v", err)
	}
	r := bufio.NewReader(conn)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("waiting for channel menu: %v", err)
		}
		if strings.Contains(line, "Channels:") {
			break
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// The session goroutine has already closed the socket, so no wait is needed.
	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, err = io.ReadAll(r)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		t.Fatal("tcp connection still open after Run returned")
	}
}
