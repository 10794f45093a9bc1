package port

import (
	"context"
	"csbot/internal/core/domain"
)

type ReplySender interface {
	// SendReply delivers text to the conversation the given message originated from.
	SendReply(ctx context.Context, message *domain.Message, text string) error
}
