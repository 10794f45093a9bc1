package domain

import "context"

type MessageType string

const (
	Private MessageType = "private"
	Stream  MessageType = "stream"
)

type Sender struct {
	ID       int64
	FullName string
	Email    string
}

// Message is an inbound chat message as seen by the router. IsPrivate is only set for direct
// conversations between the sender and the bot; group conversations address the bot via mention.
type Message struct {
	ID          int64
	TraceID     string
	Sender      Sender
	Type        MessageType
	IsPrivate   bool
	MentionsBot bool
	Stream      string
	Topic       string
	Recipients  []string
	Text        string
}

type User struct {
	ID       int64
	FullName string
	Email    string
	Role     int
	IsAdmin  bool
}

// Handler produces the textual reply for a single command invocation.
type Handler func(ctx context.Context, sender Sender, args string, message *Message) (string, error)

type Command struct {
	Keyword     string
	Description string
	Handler     Handler
	Privileged  bool
}
