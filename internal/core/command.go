package core

import "strings"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandChat is plain text for the sender's current channel.
	CommandChat CommandKind = iota
	CommandJoin
	CommandQuit
	CommandQuitChannel
	CommandNickname
	CommandKick
	CommandMute
	CommandUnmute
	CommandWhois
	CommandMode
	CommandInvite
	CommandPing
	CommandList
	CommandHelp
	// CommandUnknown is any other word starting with '/'.
	CommandUnknown
)

var commandWords = map[string]CommandKind{
	"/join":        CommandJoin,
	"/quit":        CommandQuit,
	"/quitchannel": CommandQuitChannel,
	"/nickname":    CommandNickname,
	"/kick":        CommandKick,
	"/mute":        CommandMute,
	"/unmute":      CommandUnmute,
	"/whois":       CommandWhois,
	"/mode":        CommandMode,
	"/invite":      CommandInvite,
	"/ping":        CommandPing,
	"/list":        CommandList,
	"/help":        CommandHelp,
}

func (k CommandKind) String() string {
	switch k {
	case CommandChat:
		return "chat"
	case CommandUnknown:
		return "unknown"
	}
	for word, kind := range commandWords {
		if kind == k {
			return word[1:]
		}
	}
	return "unknown"
}

// needsArg reports whether the command is meaningless without an argument.
func (k CommandKind) needsArg() bool {
	switch k {
	case CommandJoin, CommandNickname, CommandKick, CommandMute, CommandUnmute,
		CommandWhois, CommandMode, CommandInvite:
		return true
	}
	return false
}

// Command is one parsed inbound line.
type Command struct {
	Kind CommandKind
	// Word is the command as typed, e.g. "/join". Empty for chat.
	Word string
	// Arg is the trimmed remainder after Word.
	Arg string
	// Text is the chat payload, verbatim.
	Text string
}

// ParseLine splits an inbound line into its origin tag and payload at the
// first ':' and classifies the payload. The origin tag is ignored.
func ParseLine(line string) (Command, error) {
	line = strings.TrimRight(line, "\r\n")
	_, payload, ok := strings.Cut(line, ":")
	if !ok {
		return Command{}, ErrMalformedLine
	}

	trimmed := strings.TrimSpace(payload)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: CommandChat, Text: payload}, nil
	}

	word, rest := trimmed, ""
	if i := strings.IndexAny(trimmed, " \t"); i >= 0 {
		word, rest = trimmed[:i], trimmed[i+1:]
	}
	kind, known := commandWords[word]
	if !known {
		kind = CommandUnknown
	}
	return Command{
		Kind: kind,
		Word: word,
		Arg:  strings.TrimSpace(rest),
	}, nil
}
