// Package tcp serves the chat protocol over plain TCP, one line per message.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/transport"
)

// Server accepts TCP connections and runs a session for each.
type Server struct {
	hub  *core.Hub
	cfg  config.Config
	opts transport.Options
	log  *zerolog.Logger

	mu   sync.Mutex
	addr net.Addr
	wg   sync.WaitGroup
}

// NewServer builds a TCP server for hub.
func NewServer(hub *core.Hub, cfg config.Config, logger *zerolog.Logger) *Server {
	return &Server{
		hub: hub,
		cfg: cfg,
		opts: transport.Options{
			RateLimit:    cfg.RateLimitPerSec,
			Burst:        cfg.RateLimitBurst,
			DrainTimeout: cfg.ShutdownTimeout,
		},
		log: logger,
	}
}

// ListenAndServe listens on cfg.Addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled, then waits for every
// connection goroutine to return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("tcp listener started")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				s.log.Info().Msg("tcp listener stopped")
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			s.wg.Wait()
			return fmt.Errorf("accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

// Addr returns the bound address once Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	lc := newLineConn(conn, s.cfg.MaxLineBytes, s.cfg.WriteTimeout)
	defer lc.Close()

	// Unblock the reader on shutdown; writes stay open so the hub can say
	// goodbye.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := transport.Serve(ctx, s.hub, lc, lc, s.opts, s.log); err != nil {
		s.log.Debug().Err(err).Str("remote", lc.RemoteAddr()).Msg("tcp connection ended")
	}
}
