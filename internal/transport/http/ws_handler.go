package http

import (
	"context"
	"errors"
	"io"
	"net"
	stdhttp "net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/transport"
)

var errBinaryFrame = errors.New("binary frames are not supported")

// WSHandler upgrades HTTP connections and runs the line protocol over them,
// one text frame per line.
type WSHandler struct {
	hub  *core.Hub
	cfg  config.Config
	opts transport.Options
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, cfg config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
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

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	if h.cfg.MaxLineBytes > 0 {
		conn.SetReadLimit(int64(h.cfg.MaxLineBytes))
	}

	wc := newWSConn(conn, remoteHost(r.RemoteAddr), h.cfg.WriteTimeout)
	defer wc.Close()

	err = transport.Serve(r.Context(), h.hub, wc, wc, h.opts, h.log)
	if err != nil && !errors.Is(err, context.Canceled) {
		if s := websocket.CloseStatus(err); s != websocket.StatusNormalClosure && s != websocket.StatusGoingAway {
			h.log.Warn().Err(err).Str("remote", wc.RemoteAddr()).Msg("ws connection closed with error")
		}
	}
}

// wsConn adapts a WebSocket to core.Conn and transport.LineReader.
type wsConn struct {
	conn         *websocket.Conn
	addr         string
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

func newWSConn(conn *websocket.Conn, addr string, writeTimeout time.Duration) *wsConn {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &wsConn{conn: conn, addr: addr, writeTimeout: writeTimeout}
}

func (c *wsConn) ReadLine(ctx context.Context) (string, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return "", io.EOF
		}
		return "", err
	}
	if typ != websocket.MessageText {
		return "", errBinaryFrame
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// WriteLine sends each line of a multi-line message as its own frame.
func (c *wsConn) WriteLine(line string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
	defer cancel()

	for _, part := range strings.Split(line, "\n") {
		if err := c.conn.Write(ctx, websocket.MessageText, []byte(part)); err != nil {
			return err
		}
	}
	return nil
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close(websocket.StatusNormalClosure, "closing")
	})
	return c.closeErr
}

func (c *wsConn) RemoteAddr() string {
	return c.addr
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
