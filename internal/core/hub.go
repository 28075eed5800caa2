package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/metrics"
	"github.com/vovakirdan/linechat-server/internal/store"
)

const auditQueueSize = 128

// Options bounds and tunes a Hub.
type Options struct {
	MaxClients      int
	MaxChannels     int
	DefaultChannel  string
	WriteAttempts   int
	RetryBackoff    time.Duration
	QueueSize       int
	KickDisconnects bool
	Palette         []string
}

// DefaultOptions mirrors config.Default.
func DefaultOptions() Options {
	return Options{
		MaxClients:     10,
		MaxChannels:    10,
		DefaultChannel: "&default",
		WriteAttempts:  5,
		RetryBackoff:   10 * time.Millisecond,
		QueueSize:      64,
		Palette:        DefaultPalette,
	}
}

// Hub owns the client registry and the channel directory and guards both with
// a single lock, so membership changes and broadcast iteration never interleave.
type Hub struct {
	mu       sync.Mutex
	opts     Options
	clients  *registry
	channels *directory
	nextID   SessionID
	closed   bool

	log     *zerolog.Logger
	metrics *metrics.Metrics
	audit   store.AuditLog
	auditCh chan store.AuditEvent
}

// NewHub creates a hub with only the default channel. audit and m may be nil.
func NewHub(opts Options, audit store.AuditLog, m *metrics.Metrics, logger *zerolog.Logger) *Hub {
	if opts.MaxClients < 1 {
		opts.MaxClients = 1
	}
	if opts.DefaultChannel == "" {
		opts.DefaultChannel = DefaultOptions().DefaultChannel
	}
	if opts.Palette == nil {
		opts.Palette = DefaultPalette
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	h := &Hub{
		opts:     opts,
		clients:  newRegistry(opts.MaxClients, opts.Palette),
		channels: newDirectory(opts.MaxChannels, opts.DefaultChannel, opts.MaxClients-1),
		log:      logger,
		metrics:  m,
		audit:    audit,
	}
	if audit != nil {
		h.auditCh = make(chan store.AuditEvent, auditQueueSize)
	}
	h.metrics.SetChannels(h.channels.len())
	return h
}

// DefaultChannel returns the name of the lobby channel.
func (h *Hub) DefaultChannel() string {
	return h.opts.DefaultChannel
}

// Run records audit events until ctx is cancelled, then disconnects every
// session.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case ev := <-h.auditCh:
			h.record(ctx, ev)
		case <-ctx.Done():
			h.shutdown()
			for {
				select {
				case ev := <-h.auditCh:
					h.record(context.Background(), ev)
				default:
					return
				}
			}
		}
	}
}

func (h *Hub) record(ctx context.Context, ev store.AuditEvent) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.audit.Record(ctx, ev); err != nil {
		h.log.Warn().Err(err).Str("action", string(ev.Action)).Msg("failed to record audit event")
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, s := range h.clients.all() {
		s.out.enqueue(ErrShuttingDown.Message)
		h.clients.remove(s.ID)
		s.out.close()
	}
	h.metrics.SetSessions(0)
	h.log.Info().Msg("hub stopped, all sessions closed")
}

// Admit is checked before a new connection's nickname is read. A refusal is
// counted as a rejected connection.
func (h *Hub) Admit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrShuttingDown
	}
	if h.clients.full() {
		h.metrics.Rejected()
		return ErrRegistryFull
	}
	return nil
}

// Register validates nick, places a new session on the default channel and
// starts its writer. Transports call Admit before reading the nickname.
func (h *Hub) Register(conn Conn, nick string) (SessionID, error) {
	nick = strings.TrimSpace(nick)
	if err := ValidNickname(nick); err != nil {
		return 0, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, ErrShuttingDown
	}
	if h.clients.full() {
		h.metrics.Rejected()
		return 0, ErrRegistryFull
	}

	h.nextID++
	s := &Session{
		ID:      h.nextID,
		Nick:    nick,
		Channel: h.channels.defaultName(),
		Addr:    conn.RemoteAddr(),
		conn:    conn,
	}
	id := s.ID
	s.out = newOutbox(conn, h.opts.QueueSize, h.opts.WriteAttempts, h.opts.RetryBackoff, func(err error) {
		h.evict(id, "write failed", err)
	})
	if _, err := h.clients.insert(s); err != nil {
		return 0, err
	}
	go s.out.run()

	h.metrics.SetSessions(h.clients.len())
	h.log.Info().Uint64("session_id", uint64(id)).Str("nick", nick).Str("remote", s.Addr).Int("slot", s.slot).Msg("session registered")

	h.sendLocked(s, strings.Join(welcomeMenu, "\n"), h.channels.channelMenu())
	return id, nil
}

// Unregister removes the session, tells its channel it left and flushes its
// outbound queue. It is a no-op for unknown ids. The returned channel closes
// once the session's writer has finished.
func (h *Hub) Unregister(id SessionID) <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.clients.get(id)
	if s == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	h.dropLocked(s, "left the server.")
	return s.out.done
}

// Notify sends one line to a session.
func (h *Hub) Notify(id SessionID, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.clients.get(id); s != nil {
		h.sendLocked(s, line)
	}
}

// evict is called by a session's writer after its retries are exhausted.
func (h *Hub) evict(id SessionID, reason string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.clients.get(id); s != nil {
		h.evictLocked(s, reason, err)
	}
}

func (h *Hub) evictLocked(s *Session, reason string, err error) {
	h.log.Warn().Err(err).Uint64("session_id", uint64(s.ID)).Str("nick", s.Nick).Str("reason", reason).Msg("evicting session")
	h.metrics.Evicted(reason)
	h.auditLocked(store.ActionEvict, "", s.Nick, s.Channel, reason)
	h.dropLocked(s, "lost connection.")
	go s.conn.Close()
}

// dropLocked removes s from the registry and settles the channel it was on.
func (h *Hub) dropLocked(s *Session, notice string) {
	if h.clients.remove(s.ID) == nil {
		return
	}
	h.departLocked(s, notice)
	s.out.close()
	h.metrics.SetSessions(h.clients.len())
	h.log.Info().Uint64("session_id", uint64(s.ID)).Str("nick", s.Nick).Msg("session unregistered")
}

// departLocked moves s to the default channel, announcing it to the channel
// it leaves, then deletes that channel or hands its admin role on as needed.
func (h *Hub) departLocked(s *Session, notice string) {
	from := s.Channel
	if from == h.channels.defaultName() {
		return
	}
	s.Channel = h.channels.defaultName()
	s.Muted = false
	s.awaitingSuccessor = false
	h.broadcastLocked(fmt.Sprintf("%s %s", s.Nick, notice), s.ID, from)
	h.reconcileLocked(from)
}

// reconcileLocked deletes an empty non-default channel, or promotes the
// longest-connected member when the admin is gone.
func (h *Hub) reconcileLocked(name string) {
	idx, ok := h.channels.find(name)
	if !ok || idx == 0 {
		return
	}
	ch := h.channels.get(idx)
	members := h.clients.members(name)
	if len(members) == 0 {
		h.deleteChannelLocked(idx)
		return
	}
	if admin := h.clients.get(ch.admin); admin != nil && admin.Channel == name {
		return
	}

	next := members[0]
	for _, m := range members[1:] {
		if m.ID < next.ID {
			next = m
		}
	}
	ch.admin = next.ID
	next.Muted = false
	h.auditLocked(store.ActionHandoff, "", next.Nick, name, "admin left")
	h.sendLocked(next, fmt.Sprintf("You are now the admin of %s!", name))
}

func (h *Hub) deleteChannelLocked(idx int) {
	name := h.channels.get(idx).Name
	if err := h.channels.delete(idx); err != nil {
		return
	}
	h.metrics.SetChannels(h.channels.len())
	h.auditLocked(store.ActionDelete, "", "", name, "")
	h.log.Info().Str("channel", name).Msg("channel deleted")
}

// sendLocked enqueues lines for s. A session whose queue is full is evicted.
func (h *Hub) sendLocked(s *Session, lines ...string) {
	for _, line := range lines {
		if s.out.enqueue(line) {
			continue
		}
		if !s.out.closed {
			h.evictLocked(s, "outbound queue full", nil)
		}
		return
	}
}

func (h *Hub) replyErr(s *Session, err *CoreError) {
	h.sendLocked(s, err.Message)
}

func (h *Hub) auditLocked(action store.AuditAction, actor, target, channel, detail string) {
	if h.auditCh == nil {
		return
	}
	ev := store.AuditEvent{
		At:      time.Now().UTC(),
		Actor:   actor,
		Action:  action,
		Target:  target,
		Channel: channel,
		Detail:  detail,
	}
	select {
	case h.auditCh <- ev:
	default:
		h.log.Warn().Str("action", string(action)).Msg("audit queue full, event dropped")
	}
}

// Session returns a copy of the session with id.
func (h *Hub) Session(id SessionID) (SessionInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.clients.get(id)
	if s == nil {
		return SessionInfo{}, false
	}
	return h.sessionInfoLocked(s), true
}

// Sessions returns copies of all sessions in slot order.
func (h *Hub) Sessions() []SessionInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	all := h.clients.all()
	out := make([]SessionInfo, 0, len(all))
	for _, s := range all {
		out = append(out, h.sessionInfoLocked(s))
	}
	return out
}

// Channel returns a copy of the channel called name.
func (h *Hub) Channel(name string) (ChannelInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	idx, ok := h.channels.find(name)
	if !ok {
		return ChannelInfo{}, false
	}
	return h.channelInfoLocked(idx, h.channels.get(idx)), true
}

// Channels returns copies of all channels in slot order.
func (h *Hub) Channels() []ChannelInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []ChannelInfo
	for idx, ch := range h.channels.slots {
		if ch != nil {
			out = append(out, h.channelInfoLocked(idx, ch))
		}
	}
	return out
}

func (h *Hub) sessionInfoLocked(s *Session) SessionInfo {
	info := SessionInfo{
		ID:      s.ID,
		Slot:    s.slot,
		Nick:    s.Nick,
		Channel: s.Channel,
		Muted:   s.Muted,
		Addr:    s.Addr,
	}
	if ch := h.channels.lookup(s.Channel); ch != nil {
		info.Admin = ch.admin == s.ID
	}
	return info
}

func (h *Hub) channelInfoLocked(idx int, ch *Channel) ChannelInfo {
	info := ChannelInfo{
		Index:   idx,
		Name:    ch.Name,
		Mode:    ch.Mode.String(),
		Members: []string{},
		Invites: ch.Invites(),
	}
	for _, s := range h.clients.members(ch.Name) {
		info.Members = append(info.Members, s.Nick)
	}
	if admin := h.clients.get(ch.admin); admin != nil {
		info.Admin = admin.Nick
	}
	return info
}
