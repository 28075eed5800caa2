package core

import "fmt"

const (
	// MinNickLen and MaxNickLen bound a nickname in bytes.
	MinNickLen = 2
	MaxNickLen = 49
)

// SessionID identifies a connected session. IDs are assigned in connect order
// and never reused during the life of a Hub.
type SessionID uint64

// Conn is the transport handle a session writes to.
// WriteLine must append the line terminator itself.
type Conn interface {
	WriteLine(line string) error
	Close() error
	RemoteAddr() string
}

// Session is one connected user as seen by the core layer.
// All fields are guarded by the owning Hub's lock.
type Session struct {
	ID      SessionID
	Nick    string
	Channel string
	Muted   bool
	Tag     string
	Addr    string

	slot int
	conn Conn
	out  *outbox

	// awaitingSuccessor is set while an admin's /quitchannel waits for the
	// successor nickname on the next line.
	awaitingSuccessor bool
}

// SessionInfo is an immutable copy of a Session taken under the Hub lock.
type SessionInfo struct {
	ID      SessionID `json:"id"`
	Slot    int       `json:"slot"`
	Nick    string    `json:"nick"`
	Channel string    `json:"channel"`
	Admin   bool      `json:"admin"`
	Muted   bool      `json:"muted"`
	Addr    string    `json:"addr"`
}

// ValidNickname reports whether nick may be used as a nickname.
func ValidNickname(nick string) error {
	if len(nick) < MinNickLen || len(nick) > MaxNickLen {
		return ErrInvalidNickname
	}
	for i := 0; i < len(nick); i++ {
		switch nick[i] {
		case ':', '\n', '\r':
			return ErrInvalidNickname
		}
	}
	return nil
}

func (s *Session) String() string {
	return fmt.Sprintf("%s#%d", s.Nick, s.ID)
}
