package core

import "sort"

// MaxChannelNameLen bounds a channel name in bytes.
const MaxChannelNameLen = 200

// Mode is the admission mode of a channel.
type Mode int

const (
	// ModePublic lets anyone join.
	ModePublic Mode = iota
	// ModeInviteOnly requires a prior /invite.
	ModeInviteOnly
)

func (m Mode) String() string {
	if m == ModeInviteOnly {
		return "invite-only"
	}
	return "public"
}

// ParseModeFlag maps "+i" and "-i" to a Mode.
func ParseModeFlag(flag string) (Mode, bool) {
	switch flag {
	case "+i":
		return ModeInviteOnly, true
	case "-i":
		return ModePublic, true
	default:
		return ModePublic, false
	}
}

// InviteResult is the outcome of directory.invite.
type InviteResult int

const (
	Invited InviteResult = iota
	AlreadyInvited
	InviteListFull
	NotInviteOnly
)

// Channel groups sessions that see each other's chat.
// Membership is derived from Session.Channel; the channel itself only keeps
// its admission state and admin.
type Channel struct {
	Name    string
	Mode    Mode
	invites map[string]struct{}
	// admin is zero when the channel has no admin (always for the default channel).
	admin SessionID
}

func newChannel(name string) *Channel {
	return &Channel{
		Name:    name,
		Mode:    ModePublic,
		invites: make(map[string]struct{}),
	}
}

// Invited reports whether nick is on the invite list.
func (c *Channel) Invited(nick string) bool {
	_, ok := c.invites[nick]
	return ok
}

// Invites returns the invite list sorted by nickname.
func (c *Channel) Invites() []string {
	out := make([]string, 0, len(c.invites))
	for nick := range c.invites {
		out = append(out, nick)
	}
	sort.Strings(out)
	return out
}

// ChannelInfo is an immutable copy of a Channel taken under the Hub lock.
type ChannelInfo struct {
	Index   int      `json:"index"`
	Name    string   `json:"name"`
	Mode    string   `json:"mode"`
	Admin   string   `json:"admin,omitempty"`
	Members []string `json:"members"`
	Invites []string `json:"invites"`
}

// ValidChannelName reports whether name may name a channel: it starts with
// '&' or '#', fits MaxChannelNameLen and holds no space, comma or BEL.
func ValidChannelName(name string) bool {
	if name == "" || len(name) > MaxChannelNameLen {
		return false
	}
	if name[0] != '&' && name[0] != '#' {
		return false
	}
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case ' ', ',', 7, '\n', '\r':
			return false
		}
	}
	return true
}

// directory is the capacity-bounded set of channels. Slot 0 always holds the
// default channel. Like registry it relies on Hub.mu.
type directory struct {
	slots     []*Channel
	inviteCap int
}

func newDirectory(capacity int, defaultName string, inviteCap int) *directory {
	if capacity < 1 {
		capacity = 1
	}
	d := &directory{
		slots:     make([]*Channel, capacity),
		inviteCap: inviteCap,
	}
	d.slots[0] = newChannel(defaultName)
	return d
}

func (d *directory) defaultName() string {
	return d.slots[0].Name
}

// create reserves the first empty slot for name.
func (d *directory) create(name string) (int, error) {
	if !ValidChannelName(name) {
		return -1, ErrInvalidChannel
	}
	for i, ch := range d.slots {
		if ch == nil {
			d.slots[i] = newChannel(name)
			return i, nil
		}
	}
	return -1, ErrNoRoom
}

func (d *directory) find(name string) (int, bool) {
	for i, ch := range d.slots {
		if ch != nil && ch.Name == name {
			return i, true
		}
	}
	return -1, false
}

func (d *directory) get(index int) *Channel {
	if index < 0 || index >= len(d.slots) {
		return nil
	}
	return d.slots[index]
}

func (d *directory) lookup(name string) *Channel {
	idx, ok := d.find(name)
	if !ok {
		return nil
	}
	return d.slots[idx]
}

// delete frees the slot at index. The default channel is never deleted.
func (d *directory) delete(index int) error {
	if index == 0 {
		return ErrDefaultChannel
	}
	ch := d.get(index)
	if ch == nil {
		return nil
	}
	ch.Name = ""
	ch.Mode = ModePublic
	clear(ch.invites)
	ch.admin = 0
	d.slots[index] = nil
	return nil
}

// setMode transitions the channel at index. It reports false when the channel
// already was in mode. Leaving invite-only clears the invite list.
func (d *directory) setMode(index int, mode Mode) (bool, error) {
	ch := d.get(index)
	if ch == nil {
		return false, ErrInvalidChannel
	}
	if index == 0 && mode == ModeInviteOnly {
		return false, ErrDefaultChannel
	}
	if ch.Mode == mode {
		return false, nil
	}
	ch.Mode = mode
	if mode == ModePublic {
		clear(ch.invites)
	}
	return true, nil
}

func (d *directory) invite(index int, nick string) InviteResult {
	ch := d.get(index)
	if ch == nil || ch.Mode != ModeInviteOnly {
		return NotInviteOnly
	}
	if ch.Invited(nick) {
		return AlreadyInvited
	}
	if len(ch.invites) >= d.inviteCap {
		return InviteListFull
	}
	ch.invites[nick] = struct{}{}
	return Invited
}

func (d *directory) len() int {
	n := 0
	for _, ch := range d.slots {
		if ch != nil {
			n++
		}
	}
	return n
}

func (d *directory) all() []*Channel {
	var out []*Channel
	for _, ch := range d.slots {
		if ch != nil {
			out = append(out, ch)
		}
	}
	return out
}
