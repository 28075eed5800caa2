package core

// Broadcast delivers message to every member of channel except sender and
// returns how many recipients it was queued for. The default channel is a
// lobby, so broadcasting to it is a no-op.
func (h *Hub) Broadcast(message string, sender SessionID, channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.broadcastLocked(message, sender, channel)
}

// broadcastLocked queues message on each recipient's outbox. Recipients whose
// queue is full are evicted after the fan-out, so one stuck peer never stops
// delivery to the rest of the channel. Write failures are handled later by the
// recipient's own writer.
func (h *Hub) broadcastLocked(message string, sender SessionID, channel string) int {
	if channel == h.channels.defaultName() {
		return 0
	}

	var stuck []*Session
	delivered := 0
	h.clients.forEachMember(channel, func(s *Session) {
		if s.ID == sender {
			return
		}
		if s.out.enqueue(message) {
			delivered++
			return
		}
		stuck = append(stuck, s)
	})

	h.metrics.Broadcast(delivered)
	for _, s := range stuck {
		if h.clients.get(s.ID) != nil {
			h.evictLocked(s, "outbound queue full", nil)
		}
	}
	return delivered
}
