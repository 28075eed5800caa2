// Package transport holds what the TCP and WebSocket front ends share: the
// per-connection session loop that turns inbound lines into hub calls.
package transport

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/utils"
)

const defaultDrainTimeout = 5 * time.Second

// FloodNotice is sent in place of a line dropped by the rate limiter.
const FloodNotice = "You are sending messages too fast; message dropped."

// LineReader yields inbound lines without their terminator. It returns io.EOF
// when the peer is gone.
type LineReader interface {
	ReadLine(ctx context.Context) (string, error)
}

// Options tunes Serve.
type Options struct {
	// RateLimit is the sustained number of lines per second; zero disables
	// limiting.
	RateLimit float64
	Burst     int
	// DrainTimeout bounds how long Serve waits for queued output after the
	// session ends.
	DrainTimeout time.Duration
}

// Serve runs one connection: it asks the hub for admission, registers the
// nickname carried by the first line and hands every further line to the hub
// until the peer disconnects or the hub ends the session. conn is closed
// before Serve returns.
func Serve(ctx context.Context, hub *core.Hub, conn core.Conn, r LineReader, opts Options, logger *zerolog.Logger) error {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = defaultDrainTimeout
	}
	log := logger.With().Str("conn_id", utils.ShortID()).Str("remote", conn.RemoteAddr()).Logger()

	if err := hub.Admit(); err != nil {
		log.Info().Err(err).Msg("connection refused")
		reject(conn, err)
		return err
	}

	nick, err := r.ReadLine(ctx)
	if err != nil {
		conn.Close()
		return ignoreEOF(err)
	}
	id, err := hub.Register(conn, nick)
	if err != nil {
		log.Info().Err(err).Str("nick", nick).Msg("registration refused")
		reject(conn, err)
		return err
	}
	log = log.With().Uint64("session_id", uint64(id)).Logger()

	defer func() {
		select {
		case <-hub.Unregister(id):
		case <-time.After(opts.DrainTimeout):
			log.Warn().Msg("output not drained, closing connection")
			conn.Close()
		}
	}()

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	for {
		line, err := r.ReadLine(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			err = ignoreEOF(err)
			if err != nil {
				log.Debug().Err(err).Msg("read failed")
			}
			return err
		}
		if limiter != nil && !limiter.Allow() {
			hub.Notify(id, FloodNotice)
			continue
		}
		if hub.HandleLine(id, line) {
			return nil
		}
	}
}

// reject answers a connection that never became a session and closes it.
func reject(conn core.Conn, err error) {
	var coreErr *core.CoreError
	if errors.As(err, &coreErr) {
		_ = conn.WriteLine(coreErr.Message)
	}
	conn.Close()
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
