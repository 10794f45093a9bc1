package handler

import (
	"context"
	"csbot/internal/adapters/zulip"
	"csbot/internal/core/domain"
	"csbot/internal/core/port"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog/log"
)

type EventSource interface {
	RegisterQueue(ctx context.Context) (zulip.Queue, error)
	Events(ctx context.Context, queue zulip.Queue) ([]zulip.Event, error)
}

type MessageRouter interface {
	Route(ctx context.Context, message *domain.Message) (string, bool)
}

// Listener polls the Zulip event queue and answers every message addressed to the bot. Messages are
// handled one after another.
type Listener struct {
	source  EventSource
	router  MessageRouter
	sender  port.ReplySender
	profile zulip.Profile
	mention *domain.Mention
	backoff time.Duration
}

func NewListener(source EventSource, router MessageRouter, sender port.ReplySender, profile zulip.Profile,
	backoff time.Duration) *Listener {
	return &Listener{
		source:  source,
		router:  router,
		sender:  sender,
		profile: profile,
		mention: domain.NewMention(profile.FullName, profile.UserID),
		backoff: backoff,
	}
}

// Run blocks until ctx is cancelled. It only fails if the initial queue registration fails.
func (l *Listener) Run(ctx context.Context) error {
	queue, err := l.source.RegisterQueue(ctx)
	if err != nil {
		return fmt.Errorf("failed to register event queue: %w", err)
	}
	log.Info().Str("queue", queue.ID).Msg("registered event queue")

	for {
		if ctx.Err() != nil {
			log.Info().Msg("stopping listener")
			return nil
		}

		events, err := l.source.Events(ctx, queue)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}

			if zulip.IsBadEventQueue(err) {
				log.Warn().Str("queue", queue.ID).Msg("event queue expired, registering a new one")
				queue = l.reregister(ctx)
				continue
			}

			log.Err(err).Dur("backoff", l.backoff).Msg("failed to fetch events")
			l.wait(ctx)
			continue
		}

		for _, event := range events {
			if event.ID > queue.LastEventID {
				queue.LastEventID = event.ID
			}
			l.handle(ctx, event)
		}
	}
}

func (l *Listener) reregister(ctx context.Context) zulip.Queue {
	for {
		queue, err := l.source.RegisterQueue(ctx)
		if err == nil {
			log.Info().Str("queue", queue.ID).Msg("registered event queue")
			return queue
		}

		if ctx.Err() != nil {
			return zulip.Queue{}
		}

		log.Err(err).Dur("backoff", l.backoff).Msg("failed to register event queue")
		l.wait(ctx)
	}
}

func (l *Listener) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(l.backoff):
	}
}

func (l *Listener) handle(ctx context.Context, event zulip.Event) {
	if event.Type != "message" || event.Message == nil {
		return
	}

	if event.Message.SenderID == l.profile.UserID {
		return
	}

	message := l.toDomain(event)

	log.Debug().
		Int64("messageId", message.ID).
		Str("traceId", message.TraceID).
		Bool("private", message.IsPrivate).
		Bool("mentioned", message.MentionsBot).
		Msg("received message")

	reply, ok := l.router.Route(ctx, message)
	if !ok {
		return
	}

	if err := l.sender.SendReply(ctx, message, reply); err != nil {
		log.Err(err).Int64("messageId", message.ID).Str("traceId", message.TraceID).Msg("failed to deliver reply")
	}
}

func (l *Listener) toDomain(event zulip.Event) *domain.Message {
	msg := event.Message

	message := &domain.Message{
		ID:      msg.ID,
		TraceID: newTraceID(),
		Sender: domain.Sender{
			ID:       msg.SenderID,
			FullName: msg.SenderFullName,
			Email:    msg.SenderEmail,
		},
		Text:        msg.Content,
		MentionsBot: l.mention.In(msg.Content),
	}

	if msg.Type == zulip.TypeStream {
		message.Type = domain.Stream
		message.Stream = msg.StreamName()
		message.Topic = msg.Subject
		return message
	}

	message.Type = domain.Private
	recipients := msg.Recipients()
	for _, r := range recipients {
		message.Recipients = append(message.Recipients, r.Email)
	}
	message.IsPrivate = l.isOnlyRecipient(recipients)

	return message
}

// isOnlyRecipient reports whether a private conversation is between the sender and the bot alone.
// The recipient list of a private message includes the sender.
func (l *Listener) isOnlyRecipient(recipients []zulip.Recipient) bool {
	if len(recipients) != 2 {
		return false
	}

	return recipients[0].ID == l.profile.UserID || recipients[1].ID == l.profile.UserID
}

func newTraceID() string {
	id, err := uuid.NewV4()
	if err != nil {
		log.Warn().Err(err).Msg("failed to generate trace id")
		return ""
	}

	return id.String()
}
