package domain

import "errors"

var (
	ErrDuplicateCommand   = errors.New("duplicate command")
	ErrInvalidCommand     = errors.New("invalid command")
	ErrCommandNotFound    = errors.New("command not found")
	ErrSendingReplyFailed = errors.New("failed to send reply")
)

const (
	UnknownCommandReply = "Unknown command; try `help`."
	InternalErrorReply  = "Internal error; please try again later."
	ForbiddenReply      = "Sorry, you need administrator rights to use this command."
)
