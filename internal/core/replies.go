package core

import (
	"fmt"
	"strings"
)

// ColorReset ends a display tag.
const ColorReset = "\033[0m"

// DefaultPalette holds the display tags handed out round-robin at registration:
// red, green, yellow, blue, magenta and cyan.
var DefaultPalette = []string{
	"\033[1;31m",
	"\033[1;32m",
	"\033[01;33m",
	"\033[1;34m",
	"\033[1;35m",
	"\033[1;36m",
}

var welcomeMenu = []string{
	"General commands:\t\tAdmin commands:",
	"- /join <channel>\t\t- /kick <nick>",
	"- /nickname <nick>\t\t- /mute <nick>",
	"- /ping\t\t\t\t- /unmute <nick>",
	"- /quit\t\t\t\t- /whois <nick>",
	"- /quitchannel\t\t\t- /mode <+i|-i>",
	"- /list\t\t\t\t- /invite <nick>",
	"- /help",
	"",
	"To join a channel type \"/join <channel>\". Channel names start with '#' or '&'",
	"and cannot contain spaces, commas or ASCII 7.",
}

// chatLine formats a chat message as seen by the other members.
func chatLine(s *Session, text string) string {
	return s.Tag + s.Nick + ColorReset + ":" + text
}

// channelMenu lists existing channels in slot order, one per line.
func (d *directory) channelMenu() string {
	lines := []string{"Channels:"}
	for i, ch := range d.all() {
		entry := fmt.Sprintf("\t%d - %s", i, ch.Name)
		if ch.Mode == ModeInviteOnly {
			entry += " (invite-only)"
		}
		lines = append(lines, entry)
	}
	return strings.Join(lines, "\n")
}

func usage(k CommandKind) *CoreError {
	var arg string
	switch k {
	case CommandJoin:
		arg = "<channel>"
	case CommandMode:
		arg = "<+i|-i>"
	default:
		arg = "<nick>"
	}
	return coreError(ErrCodeBadRequest, fmt.Sprintf("Usage: /%s %s", k, arg))
}

func notAdmin(k CommandKind) *CoreError {
	return coreError(ErrCodeNotAdmin, fmt.Sprintf("Only the channel admin can use /%s. Create your own channel!", k))
}

func notFound(nick string) *CoreError {
	return coreError(ErrCodeNotFound, fmt.Sprintf("Client %s not found.", nick))
}

func unknownCommand(word string) *CoreError {
	return coreError(ErrCodeUnknownCommand, fmt.Sprintf("Unknown command %s. Type /help for the list of commands.", strings.TrimSpace(word)))
}
