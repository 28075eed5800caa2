package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/store"
)

// NewServer builds the admin HTTP server: health, metrics, read-only state
// snapshots and the WebSocket line transport. audit and gatherer may be nil.
// /ws sits on the outer mux so the upgrade can hijack the raw connection.
func NewServer(hub *core.Hub, audit store.AuditLog, cfg config.Config, gatherer prometheus.Gatherer, logger *zerolog.Logger) *stdhttp.Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	api := NewAPIHandlers(hub, audit, logger)

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	apiGroup := router.Group("/api")
	apiGroup.GET("/channels", api.ListChannels)
	apiGroup.GET("/channels/:name", api.GetChannel)
	apiGroup.GET("/sessions", api.ListSessions)
	apiGroup.GET("/audit", api.RecentAudit)

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
