package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/linechat-server/internal/store"
)

// Schema creates the audit table; it is applied on every open.
const Schema = `
CREATE TABLE IF NOT EXISTS moderation_events (
	id         TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL,
	actor      TEXT NOT NULL DEFAULT '',
	action     TEXT NOT NULL,
	target     TEXT NOT NULL DEFAULT '',
	channel    TEXT NOT NULL DEFAULT '',
	detail     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_moderation_events_created ON moderation_events(created_at DESC);
`

// SQLiteStore implements store.AuditLog for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies Schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, applySchema)
}

// NewWithSetup opens the database and runs setup before the first ping.
// Tests use it with ":memory:".
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; ":memory:" needs it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func applySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record inserts ev.
func (s *SQLiteStore) Record(ctx context.Context, ev store.AuditEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	query := `
		INSERT INTO moderation_events (id, created_at, actor, action, target, channel, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query,
		ev.ID, ev.At.UTC(), ev.Actor, string(ev.Action), ev.Target, ev.Channel, ev.Detail,
	); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]store.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, created_at, actor, action, target, channel, detail
		FROM moderation_events
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := []store.AuditEvent{}
	for rows.Next() {
		var (
			ev     store.AuditEvent
			action string
		)
		if err := rows.Scan(&ev.ID, &ev.At, &ev.Actor, &action, &ev.Target, &ev.Channel, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.Action = store.AuditAction(action)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
