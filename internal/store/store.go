package store

import (
	"context"
	"time"
)

// AuditAction names a moderation or lifecycle event.
type AuditAction string

const (
	ActionCreate  AuditAction = "create"
	ActionDelete  AuditAction = "delete"
	ActionKick    AuditAction = "kick"
	ActionMute    AuditAction = "mute"
	ActionUnmute  AuditAction = "unmute"
	ActionMode    AuditAction = "mode"
	ActionInvite  AuditAction = "invite"
	ActionHandoff AuditAction = "admin_handoff"
	ActionEvict   AuditAction = "evict"
)

// AuditEvent is one entry of the moderation audit log.
type AuditEvent struct {
	ID      string
	At      time.Time
	Actor   string // nickname of the issuing admin, empty for server actions
	Action  AuditAction
	Target  string
	Channel string
	Detail  string
}

// AuditLog is an append-only record of moderation actions. It is never read
// back into the live chat state.
type AuditLog interface {
	// Record appends ev, assigning an ID when ev.ID is empty.
	Record(ctx context.Context, ev AuditEvent) error

	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]AuditEvent, error)

	Close() error
}
