package utils

import (
	"github.com/google/uuid"
)

// NewID returns a random identifier suitable for correlating log lines.
func NewID() string {
	return uuid.NewString()
}

// ShortID returns the first eight hex digits of a new identifier.
func ShortID() string {
	return NewID()[:8]
}
