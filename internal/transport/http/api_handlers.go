package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/store"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// APIHandlers serves read-only snapshots of the hub and the audit log.
type APIHandlers struct {
	hub   *core.Hub
	audit store.AuditLog
	log   *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance. audit may be nil.
func NewAPIHandlers(hub *core.Hub, audit store.AuditLog, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		hub:   hub,
		audit: audit,
		log:   logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ChannelsResponse represents the channel list response body.
type ChannelsResponse struct {
	Channels []core.ChannelInfo `json:"channels"`
}

// SessionsResponse represents the session list response body.
type SessionsResponse struct {
	Sessions []core.SessionInfo `json:"sessions"`
}

// AuditEventResponse represents one audit event in API responses.
type AuditEventResponse struct {
	ID      string `json:"id"`
	At      string `json:"at"`
	Actor   string `json:"actor,omitempty"`
	Action  string `json:"action"`
	Target  string `json:"target,omitempty"`
	Channel string `json:"channel,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// AuditResponse represents the audit log response body.
type AuditResponse struct {
	Events []AuditEventResponse `json:"events"`
}

// ListChannels returns every channel in slot order.
// GET /api/channels
func (h *APIHandlers) ListChannels(c *gin.Context) {
	c.JSON(http.StatusOK, ChannelsResponse{Channels: h.hub.Channels()})
}

// GetChannel returns one channel. Names starting with '#' must be sent
// percent-encoded.
// GET /api/channels/:name
func (h *APIHandlers) GetChannel(c *gin.Context) {
	info, ok := h.hub.Channel(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// ListSessions returns every connected session in slot order.
// GET /api/sessions
func (h *APIHandlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, SessionsResponse{Sessions: h.hub.Sessions()})
}

// RecentAudit returns the newest moderation events.
// GET /api/audit?limit=N
func (h *APIHandlers) RecentAudit(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "audit log disabled"})
		return
	}

	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxAuditLimit)
	}

	events, err := h.audit.Recent(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to read audit log")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := AuditResponse{Events: make([]AuditEventResponse, 0, len(events))}
	for _, ev := range events {
		resp.Events = append(resp.Events, AuditEventResponse{
			ID:      ev.ID,
			At:      ev.At.UTC().Format(time.RFC3339),
			Actor:   ev.Actor,
			Action:  string(ev.Action),
			Target:  ev.Target,
			Channel: ev.Channel,
			Detail:  ev.Detail,
		})
	}
	c.JSON(http.StatusOK, resp)
}
