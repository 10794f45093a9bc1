package service

import (
	"context"
	"csbot/internal/core/domain"
	"csbot/internal/core/domain/command"
	"csbot/internal/core/port"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrHandlerTimeout = errors.New("command handler timed out")

// Router decides whether a message addresses the bot and turns it into a command reply. It holds
// no per-conversation state and may be called concurrently.
type Router struct {
	registry   port.CommandRegistry
	authorizer Authorizer
	mention    *domain.Mention
	timeout    time.Duration
}

func NewRouter(registry port.CommandRegistry, authorizer Authorizer, mention *domain.Mention,
	timeout time.Duration) *Router {
	return &Router{
		registry:   registry,
		authorizer: authorizer,
		mention:    mention,
		timeout:    timeout,
	}
}

// Route returns the reply for message. ok is false when the bot must stay silent.
func (r *Router) Route(ctx context.Context, message *domain.Message) (reply string, ok bool) {
	l := log.With().
		Int64("messageId", message.ID).
		Int64("senderId", message.Sender.ID).
		Str("traceId", message.TraceID).
		Logger()

	if !message.IsPrivate && !message.MentionsBot {
		l.Debug().Msg("message not addressed to bot, ignoring")
		return "", false
	}

	text := message.Text
	if r.mention != nil {
		text = r.mention.Strip(text)
	}

	keyword := command.ParseCommand(text)
	if keyword == "" {
		l.Debug().Msg("no command in message, ignoring")
		return "", false
	}
	args := command.ParseCommandArgs(text)

	l = l.With().Str("command", keyword).Logger()

	cmd, err := r.registry.Lookup(keyword)
	if err != nil {
		l.Debug().Err(err).Msg("no handler for command")
		return domain.UnknownCommandReply, true
	}

	if cmd.Privileged && (r.authorizer == nil || !r.authorizer.IsPrivileged(ctx, message.Sender.ID)) {
		l.Info().Msg("rejecting privileged command")
		return domain.ForbiddenReply, true
	}

	l.Info().Msg("handling command")

	reply, err = r.invoke(ctx, cmd, args, message)
	if err != nil {
		l.Error().Err(err).Msg("failed to respond to command")
		return domain.InternalErrorReply, true
	}

	return reply, true
}

type result struct {
	reply string
	err   error
}

func (r *Router) invoke(ctx context.Context, cmd domain.Command, args string, message *domain.Message) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	done := make(chan result, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("command handler panicked: %v", p)}
			}
		}()

		reply, err := cmd.Handler(ctx, message.Sender, args, message)
		done <- result{reply: reply, err: err}
	}()

	select {
	case res := <-done:
		return res.reply, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrHandlerTimeout, ctx.Err())
	}
}
