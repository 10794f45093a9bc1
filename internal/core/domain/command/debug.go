package command

import (
	"context"
	"csbot/internal/core/domain"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Debug replies with the received message, as the bot understood it.
type Debug struct{}

func NewDebug() *Debug {
	return &Debug{}
}

const DebugDescription = "Echo the received message as seen by the bot."

type debugView struct {
	ID          int64              `json:"id"`
	SenderID    int64              `json:"sender_id"`
	SenderName  string             `json:"sender_full_name"`
	SenderEmail string             `json:"sender_email"`
	Type        domain.MessageType `json:"type"`
	IsPrivate   bool               `json:"is_private"`
	MentionsBot bool               `json:"mentions_bot"`
	Stream      string             `json:"stream,omitempty"`
	Topic       string             `json:"topic,omitempty"`
	Recipients  []string           `json:"recipients,omitempty"`
	Content     string             `json:"content"`
}

func (d *Debug) Handle(_ context.Context, sender domain.Sender, _ string, message *domain.Message) (string, error) {
	log.Info().
		Int64("messageId", message.ID).
		Str("traceId", message.TraceID).
		Msg("handling debug request")

	buf, err := json.MarshalIndent(debugView{
		ID:          message.ID,
		SenderID:    sender.ID,
		SenderName:  sender.FullName,
		SenderEmail: sender.Email,
		Type:        message.Type,
		IsPrivate:   message.IsPrivate,
		MentionsBot: message.MentionsBot,
		Stream:      message.Stream,
		Topic:       message.Topic,
		Recipients:  message.Recipients,
		Content:     message.Text,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}

	return "```\n" + string(buf) + "\n```", nil
}
