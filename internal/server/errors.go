package server

import "errors"

// Failures returned by registry operations. Each maps to a user-facing reason
// and never tears down a connection.
var (
	ErrSessionNotFound = errors.New("invalid session id")
	ErrStreamBound     = errors.New("session already has a stream")
	ErrChatNotFound    = errors.New("chat does not exist")
	ErrInvalidInvite   = errors.New("invalid invite")
	ErrNotAdmin        = errors.New("you have to be admin to do that")
	ErrNotInChat       = errors.New("you are not in a chat")
	ErrAlreadyInChat   = errors.New("leave your current chat first")
	ErrNotSupported    = errors.New("not supported by this server")
	ErrOutboxFull      = errors.New("outbox full")
	ErrOutboxClosed    = errors.New("outbox closed")
)
