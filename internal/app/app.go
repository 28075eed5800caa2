package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/metrics"
	"github.com/vovakirdan/linechat-server/internal/store"
	"github.com/vovakirdan/linechat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/linechat-server/internal/transport/http"
	"github.com/vovakirdan/linechat-server/internal/transport/tcp"
)

// App wires together core and transport layers.
type App struct {
	tcp             *tcp.Server
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	audit           store.AuditLog
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var audit store.AuditLog
	if cfg.AuditDBPath != "" {
		st, err := sqlite.New(cfg.AuditDBPath)
		if err != nil {
			return nil, fmt.Errorf("init audit store: %w", err)
		}
		audit = st
		logger.Info().Str("db_path", cfg.AuditDBPath).Msg("audit log initialized")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := core.NewHub(core.Options{
		MaxClients:      cfg.MaxClients,
		MaxChannels:     cfg.MaxChannels,
		DefaultChannel:  cfg.DefaultChannel,
		WriteAttempts:   cfg.WriteAttempts,
		RetryBackoff:    cfg.WriteRetryBackoff,
		QueueSize:       cfg.OutboundQueue,
		KickDisconnects: cfg.KickDisconnects,
		Palette:         core.DefaultPalette,
	}, audit, metrics.New(reg), logger)

	a := &App{
		tcp:             tcp.NewServer(hub, *cfg, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		audit:           audit,
		log:             logger,
	}
	if cfg.HTTPAddr != "" {
		a.server = transporthttp.NewServer(hub, audit, *cfg, reg, logger)
	}
	return a, nil
}

// Run starts the hub and both listeners and blocks until context
// cancellation or a fatal listener error.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.hub.Run(ctx)
	}()

	serverErr := make(chan error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		serverErr <- a.tcp.ListenAndServe(ctx)
	}()

	if a.server != nil {
		a.server.BaseContext = func(net.Listener) context.Context { return ctx }
		go func() {
			a.log.Info().Str("addr", a.server.Addr).Msg("http server started")
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				serverErr <- err
				return
			}
			serverErr <- nil
		}()
	}

	var runErr error
	select {
	case runErr = <-serverErr:
		if runErr != nil {
			a.log.Error().Err(runErr).Msg("listener failed")
		}
	case <-ctx.Done():
	}
	cancel()

	if a.server != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer stop()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = err
		}
	}

	// The TCP listener returns only after its connection goroutines exit.
	wg.Wait()
	a.cleanup()
	return runErr
}

// cleanup closes the audit store once the hub has flushed it.
func (a *App) cleanup() {
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close audit store")
		} else {
			a.log.Info().Msg("audit store closed")
		}
	}
}
