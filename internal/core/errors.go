package core

// Error codes for domain errors.
const (
	ErrCodeRegistryFull       = "registry_full"
	ErrCodeNoRoom             = "no_room"
	ErrCodeInvalidNickname    = "invalid_nickname"
	ErrCodeInvalidChannel     = "invalid_channel"
	ErrCodeNotFound           = "not_found"
	ErrCodeNotAdmin           = "not_admin"
	ErrCodeInviteOnly         = "invite_only"
	ErrCodeNickInUse          = "nick_in_use"
	ErrCodeAlreadyInChannel   = "already_in_channel"
	ErrCodeAlreadyInOtherChan = "already_in_other_channel"
	ErrCodeInviteListFull     = "invite_list_full"
	ErrCodeAlreadyInvited     = "already_invited"
	ErrCodeNotInviteOnly      = "not_invite_only"
	ErrCodeInvalidMode        = "invalid_mode"
	ErrCodeDefaultChannel     = "default_channel"
	ErrCodeUnknownCommand     = "unknown_command"
	ErrCodeBadRequest         = "bad_request"
	ErrCodeMalformedLine      = "malformed_line"
	ErrCodeShuttingDown       = "shutting_down"
)

var (
	ErrRegistryFull    = coreError(ErrCodeRegistryFull, "Server is full! Maybe next time...")
	ErrNoRoom          = coreError(ErrCodeNoRoom, "There is no room for new channels!")
	ErrInvalidNickname = coreError(ErrCodeInvalidNickname, "Invalid nickname: use 2 to 49 characters and no ':'.")
	ErrInvalidChannel  = coreError(ErrCodeInvalidChannel, "Please enter a valid channel name!")
	ErrDefaultChannel  = coreError(ErrCodeDefaultChannel, "The default channel cannot be changed.")
	ErrMalformedLine   = coreError(ErrCodeMalformedLine, "malformed line: missing ':' separator")
	ErrShuttingDown    = coreError(ErrCodeShuttingDown, "Server is shutting down.")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
