package sender

import (
	"context"
	"csbot/internal/adapters/zulip"
	"csbot/internal/core/domain"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

//go:generate mockery --name ZulipBot

type ZulipBot interface {
	SendMessage(ctx context.Context, msg zulip.OutgoingMessage) (int64, error)
}

// Zulip sends replies into the conversation a message came from.
type Zulip struct {
	bot      ZulipBot
	botEmail string
}

func NewZulip(bot ZulipBot, botEmail string) *Zulip {
	return &Zulip{bot: bot, botEmail: botEmail}
}

// ZulipMessageLimit is the maximum content length in bytes accepted by the server.
const ZulipMessageLimit = 10000

func (s *Zulip) SendReply(ctx context.Context, message *domain.Message, text string) error {
	l := log.With().
		Int64("messageId", message.ID).
		Str("traceId", message.TraceID).
		Logger()

	if strings.TrimSpace(text) == "" {
		l.Debug().Msg("empty reply, nothing to send")
		return nil
	}

	out := zulip.OutgoingMessage{Type: zulip.TypePrivate}
	if message.Type == domain.Stream {
		out.Type = zulip.TypeStream
		out.To = []string{message.Stream}
		out.Topic = message.Topic
	} else {
		out.To = s.privateRecipients(message)
	}

	for i, part := range chunk(text, ZulipMessageLimit) {
		out.Content = part

		id, err := s.bot.SendMessage(ctx, out)
		if err != nil {
			l.Error().Err(err).Int("part", i).Msg("failed to send reply")
			return fmt.Errorf("%w: %w", domain.ErrSendingReplyFailed, err)
		}

		l.Debug().Int64("replyId", id).Int("part", i).Msg("sent reply")
	}

	return nil
}

// privateRecipients returns everyone in the conversation except the bot, falling back to the sender.
func (s *Zulip) privateRecipients(message *domain.Message) []string {
	var to []string
	for _, r := range message.Recipients {
		if !strings.EqualFold(r, s.botEmail) {
			to = append(to, r)
		}
	}

	if len(to) == 0 {
		to = []string{message.Sender.Email}
	}

	return to
}

// chunk splits text into parts of at most limit bytes, preferring line breaks and never splitting
// a UTF-8 sequence.
func chunk(text string, limit int) []string {
	var parts []string

	for len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		if i := strings.LastIndexByte(text[:cut], '\n'); i > 0 {
			cut = i + 1
		}

		parts = append(parts, text[:cut])
		text = text[cut:]
	}

	return append(parts, text)
}
