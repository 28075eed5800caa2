package core

import (
	"fmt"
	"strings"

	"github.com/vovakirdan/linechat-server/internal/store"
)

// HandleLine processes one inbound line from session id and reports whether
// the connection should end: after /quit, on a malformed line, or when the
// session is no longer registered (evicted or kicked off the server).
func (h *Hub) HandleLine(id SessionID, line string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.clients.get(id)
	if s == nil {
		return true
	}
	if strings.TrimSpace(line) == "" {
		return false
	}

	cmd, err := ParseLine(line)
	if err != nil {
		h.log.Warn().Uint64("session_id", uint64(id)).Str("nick", s.Nick).Msg("protocol error, disconnecting")
		return true
	}

	if s.awaitingSuccessor {
		s.awaitingSuccessor = false
		if cmd.Kind == CommandChat {
			h.completeHandoff(s, strings.TrimSpace(cmd.Text))
			return h.clients.get(id) == nil
		}
		h.sendLocked(s, "Admin handoff cancelled.")
	}

	h.metrics.Command(cmd.Kind.String())
	if cmd.Kind.needsArg() && cmd.Arg == "" {
		h.replyErr(s, usage(cmd.Kind))
		return false
	}

	switch cmd.Kind {
	case CommandChat:
		h.chat(s, cmd.Text)
	case CommandQuit:
		h.sendLocked(s, "Goodbye!")
		return true
	case CommandJoin:
		h.join(s, cmd.Arg)
	case CommandQuitChannel:
		h.quitChannel(s)
	case CommandNickname:
		h.nickname(s, cmd.Arg)
	case CommandKick:
		h.kick(s, cmd.Arg)
	case CommandMute:
		h.setMuted(s, cmd.Kind, cmd.Arg, true)
	case CommandUnmute:
		h.setMuted(s, cmd.Kind, cmd.Arg, false)
	case CommandWhois:
		h.whois(s, cmd.Arg)
	case CommandMode:
		h.mode(s, cmd.Arg)
	case CommandInvite:
		h.invite(s, cmd.Arg)
	case CommandPing:
		h.sendLocked(s, "pong")
	case CommandList:
		h.sendLocked(s, h.channels.channelMenu())
	case CommandHelp:
		h.sendLocked(s, strings.Join(welcomeMenu, "\n"))
	default:
		h.replyErr(s, unknownCommand(cmd.Word))
	}
	return h.clients.get(id) == nil
}

func (h *Hub) chat(s *Session, text string) {
	if s.Muted || strings.TrimSpace(text) == "" {
		return
	}
	h.log.Debug().Str("nick", s.Nick).Str("channel", s.Channel).Str("text", text).Msg("chat")
	h.broadcastLocked(chatLine(s, text), s.ID, s.Channel)
}

func (h *Hub) join(s *Session, name string) {
	if !ValidChannelName(name) {
		h.replyErr(s, ErrInvalidChannel)
		return
	}
	if s.Channel == name {
		h.replyErr(s, coreError(ErrCodeAlreadyInChannel, "You are already in this channel!"))
		return
	}

	idx, exists := h.channels.find(name)
	if exists {
		if ch := h.channels.get(idx); ch.Mode == ModeInviteOnly && !ch.Invited(s.Nick) {
			h.replyErr(s, coreError(ErrCodeInviteOnly, "Sorry... this channel is invite-only and you have not been invited."))
			return
		}
	}
	if h.clients.findByNickInChannel(s.Nick, name) != nil {
		h.replyErr(s, coreError(ErrCodeNickInUse, fmt.Sprintf(
			"There is already a user called %s in that channel; change your nick with \"/nickname <nick>\" to join.", s.Nick)))
		return
	}
	if s.Channel != h.channels.defaultName() {
		h.replyErr(s, coreError(ErrCodeAlreadyInOtherChan, "Leave your current channel with /quitchannel before joining another one."))
		return
	}

	created := false
	if !exists {
		var err error
		if idx, err = h.channels.create(name); err != nil {
			h.replyErr(s, ErrNoRoom)
			return
		}
		created = true
		h.channels.get(idx).admin = s.ID
		h.metrics.SetChannels(h.channels.len())
	}
	s.Channel = name

	if created {
		h.auditLocked(store.ActionCreate, s.Nick, "", name, "")
		h.log.Info().Str("channel", name).Str("nick", s.Nick).Msg("channel created")
		h.sendLocked(s, fmt.Sprintf("Welcome to channel %s. You are the admin! With great power comes great responsibility.", name))
	} else {
		h.sendLocked(s, fmt.Sprintf("Welcome to channel %s!", name))
	}
	h.broadcastLocked(fmt.Sprintf("%s joined channel %s!", s.Nick, name), s.ID, name)
}

func (h *Hub) quitChannel(s *Session) {
	if s.Channel == h.channels.defaultName() {
		h.replyErr(s, coreError(ErrCodeDefaultChannel, "You cannot leave the default channel."))
		return
	}
	ch := h.channels.lookup(s.Channel)
	if ch == nil || ch.admin != s.ID {
		h.leaveChannel(s)
		return
	}

	var others []string
	h.clients.forEachMember(s.Channel, func(m *Session) {
		if m.ID != s.ID {
			others = append(others, "- "+m.Nick)
		}
	})
	if len(others) == 0 {
		name := s.Channel
		h.sendLocked(s, fmt.Sprintf("You were the only one here, so %s is gone!", name))
		h.leaveChannel(s)
		return
	}

	s.awaitingSuccessor = true
	h.sendLocked(s, strings.Join(others, "\n"),
		fmt.Sprintf("Of the members above, who will be the new admin of %s?", s.Channel))
}

// completeHandoff finishes an admin's /quitchannel once the successor
// nickname has arrived. An unknown nickname leaves the admin in place.
func (h *Hub) completeHandoff(s *Session, nick string) {
	ch := h.channels.lookup(s.Channel)
	if ch == nil || ch.admin != s.ID {
		h.leaveChannel(s)
		return
	}
	target := h.clients.findByNickInChannel(nick, s.Channel)
	if target == nil || target.ID == s.ID {
		h.sendLocked(s, "Client not found! Try /quitchannel again...")
		return
	}

	ch.admin = target.ID
	target.Muted = false
	h.auditLocked(store.ActionHandoff, s.Nick, target.Nick, ch.Name, "")
	h.log.Info().Str("channel", ch.Name).Str("from", s.Nick).Str("to", target.Nick).Msg("admin handoff")
	h.sendLocked(target, "You are now the admin! With great power comes great responsibility.")
	h.leaveChannel(s)
}

// leaveChannel moves s back to the default channel, deleting the channel it
// left if that emptied it.
func (h *Hub) leaveChannel(s *Session) {
	h.departLocked(s, "left the channel.")
	h.sendLocked(s, "You left the channel.", h.channels.channelMenu())
}

func (h *Hub) nickname(s *Session, nick string) {
	if err := ValidNickname(nick); err != nil {
		h.replyErr(s, ErrInvalidNickname)
		return
	}
	if nick == s.Nick {
		h.sendLocked(s, fmt.Sprintf("Your nickname already is %s.", nick))
		return
	}
	if s.Channel != h.channels.defaultName() && h.clients.findByNickInChannel(nick, s.Channel) != nil {
		h.replyErr(s, coreError(ErrCodeNickInUse, fmt.Sprintf("There is already a user called %s in this channel.", nick)))
		return
	}

	old := s.Nick
	s.Nick = nick
	h.broadcastLocked(fmt.Sprintf("%s is now known as %s!", old, nick), s.ID, s.Channel)
	h.sendLocked(s, fmt.Sprintf("Nickname changed to %s!", nick))
}

// requireAdmin returns the slot and channel s administers. On the default
// channel nobody is admin.
func (h *Hub) requireAdmin(s *Session, kind CommandKind) (int, *Channel, bool) {
	idx, ok := h.channels.find(s.Channel)
	if !ok || h.channels.get(idx).admin != s.ID {
		h.replyErr(s, notAdmin(kind))
		return -1, nil, false
	}
	return idx, h.channels.get(idx), true
}

// adminTarget checks that s administers its channel and that nick names
// another member of it.
func (h *Hub) adminTarget(s *Session, kind CommandKind, nick string) (*Channel, *Session, bool) {
	_, ch, ok := h.requireAdmin(s, kind)
	if !ok {
		return nil, nil, false
	}
	if ValidNickname(nick) != nil {
		h.replyErr(s, ErrInvalidNickname)
		return nil, nil, false
	}
	target := h.clients.findByNickInChannel(nick, s.Channel)
	if target == nil {
		h.replyErr(s, notFound(nick))
		return nil, nil, false
	}
	return ch, target, true
}

func (h *Hub) kick(s *Session, nick string) {
	ch, target, ok := h.adminTarget(s, CommandKick, nick)
	if !ok {
		return
	}
	if target.ID == s.ID {
		h.sendLocked(s, "You cannot kick yourself out of the channel.")
		return
	}

	target.Channel = h.channels.defaultName()
	target.Muted = false
	target.awaitingSuccessor = false
	h.auditLocked(store.ActionKick, s.Nick, target.Nick, ch.Name, "")
	h.log.Info().Str("channel", ch.Name).Str("nick", s.Nick).Str("target", target.Nick).Msg("kick")

	h.sendLocked(target, fmt.Sprintf("You were kicked from channel %s. Maybe rethink your actions.", ch.Name), h.channels.channelMenu())
	h.sendLocked(s, fmt.Sprintf("%s is no longer in channel %s!", target.Nick, ch.Name))
	h.broadcastLocked(fmt.Sprintf("%s was kicked from channel %s.", target.Nick, ch.Name), s.ID, ch.Name)

	if h.opts.KickDisconnects {
		h.dropLocked(target, "was kicked.")
	}
}

func (h *Hub) setMuted(s *Session, kind CommandKind, nick string, muted bool) {
	ch, target, ok := h.adminTarget(s, kind, nick)
	if !ok {
		return
	}
	target.Muted = muted

	action, notice, reply := store.ActionUnmute, "You can speak again.", "%s can speak again!"
	if muted {
		action, notice, reply = store.ActionMute, "Shh, you have been muted.", "%s has been muted!"
	}
	h.auditLocked(action, s.Nick, target.Nick, ch.Name, "")
	h.sendLocked(target, notice)
	h.sendLocked(s, fmt.Sprintf(reply, target.Nick))
}

func (h *Hub) whois(s *Session, nick string) {
	_, target, ok := h.adminTarget(s, CommandWhois, nick)
	if !ok {
		return
	}
	h.sendLocked(s, fmt.Sprintf("The IP address of %s is %s", target.Nick, target.Addr))
}

func (h *Hub) mode(s *Session, flag string) {
	idx, _, ok := h.requireAdmin(s, CommandMode)
	if !ok {
		return
	}
	mode, valid := ParseModeFlag(flag)
	if !valid {
		h.replyErr(s, coreError(ErrCodeInvalidMode, "Invalid mode, the only options are +i or -i!"))
		return
	}

	changed, err := h.channels.setMode(idx, mode)
	if err != nil {
		h.replyErr(s, ErrDefaultChannel)
		return
	}
	if !changed {
		if mode == ModeInviteOnly {
			h.sendLocked(s, "This channel is already invite-only!")
		} else {
			h.sendLocked(s, "This channel is already public!")
		}
		return
	}

	h.auditLocked(store.ActionMode, s.Nick, "", s.Channel, flag)
	if mode == ModeInviteOnly {
		h.sendLocked(s, "This channel is now invite-only!")
	} else {
		h.sendLocked(s, "This channel is no longer invite-only, anyone can join!")
	}
	h.broadcastLocked(fmt.Sprintf("Channel %s is now %s.", s.Channel, mode), s.ID, s.Channel)
}

func (h *Hub) invite(s *Session, nick string) {
	idx, ch, ok := h.requireAdmin(s, CommandInvite)
	if !ok {
		return
	}
	if ValidNickname(nick) != nil {
		h.replyErr(s, ErrInvalidNickname)
		return
	}
	if ch.Mode != ModeInviteOnly {
		h.replyErr(s, coreError(ErrCodeNotInviteOnly, "You cannot invite anyone to a channel that is not invite-only."))
		return
	}
	target := h.clients.findByNick(nick)
	if target == nil {
		h.replyErr(s, coreError(ErrCodeNotFound, "The user must be connected to the server to be invited."))
		return
	}

	switch h.channels.invite(idx, nick) {
	case AlreadyInvited:
		h.replyErr(s, coreError(ErrCodeAlreadyInvited, fmt.Sprintf("%s has already been invited to this channel.", nick)))
	case InviteListFull:
		h.replyErr(s, coreError(ErrCodeInviteListFull, "This channel has reached the maximum number of invited users."))
	case NotInviteOnly:
		h.replyErr(s, coreError(ErrCodeNotInviteOnly, "You cannot invite anyone to a channel that is not invite-only."))
	case Invited:
		h.auditLocked(store.ActionInvite, s.Nick, nick, s.Channel, "")
		h.sendLocked(s, fmt.Sprintf("%s has been invited to join this channel.", nick))
		h.sendLocked(target, fmt.Sprintf("You got a free pass to channel %s.", s.Channel))
	}
}
