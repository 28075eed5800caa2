package core

// registry is the capacity-bounded arena of connected sessions.
// It has no lock of its own: every method runs under Hub.mu.
type registry struct {
	slots   []*Session
	byID    map[SessionID]*Session
	palette []string
	nextTag int
}

func newRegistry(capacity int, palette []string) *registry {
	return &registry{
		slots:   make([]*Session, capacity),
		byID:    make(map[SessionID]*Session, capacity),
		palette: palette,
	}
}

// insert places s into the first free slot and assigns its display tag.
func (r *registry) insert(s *Session) (int, error) {
	for i, cur := range r.slots {
		if cur != nil {
			continue
		}
		s.slot = i
		if len(r.palette) > 0 {
			s.Tag = r.palette[r.nextTag%len(r.palette)]
			r.nextTag++
		}
		r.slots[i] = s
		r.byID[s.ID] = s
		return i, nil
	}
	return -1, ErrRegistryFull
}

// remove deletes the session with id and returns it, or nil if absent.
func (r *registry) remove(id SessionID) *Session {
	s, ok := r.byID[id]
	if !ok {
		return nil
	}
	delete(r.byID, id)
	r.slots[s.slot] = nil
	return s
}

func (r *registry) get(id SessionID) *Session {
	return r.byID[id]
}

func (r *registry) len() int {
	return len(r.byID)
}

func (r *registry) full() bool {
	return len(r.byID) >= len(r.slots)
}

// findByNickInChannel returns the first session in slot order with the given
// nickname on channel.
func (r *registry) findByNickInChannel(nick, channel string) *Session {
	for _, s := range r.slots {
		if s != nil && s.Channel == channel && s.Nick == nick {
			return s
		}
	}
	return nil
}

// findByNick searches every channel.
func (r *registry) findByNick(nick string) *Session {
	for _, s := range r.slots {
		if s != nil && s.Nick == nick {
			return s
		}
	}
	return nil
}

// members returns the sessions on channel in slot order.
func (r *registry) members(channel string) []*Session {
	var out []*Session
	for _, s := range r.slots {
		if s != nil && s.Channel == channel {
			out = append(out, s)
		}
	}
	return out
}

// forEachMember calls fn for every session on channel. The member set is
// fixed before the first call, so fn may move or remove sessions.
func (r *registry) forEachMember(channel string, fn func(*Session)) {
	for _, s := range r.members(channel) {
		fn(s)
	}
}

func (r *registry) all() []*Session {
	out := make([]*Session, 0, len(r.byID))
	for _, s := range r.slots {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
