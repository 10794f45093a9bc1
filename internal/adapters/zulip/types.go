package zulip

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	CodeRateLimitHit    = "RATE_LIMIT_HIT"
	CodeBadEventQueueID = "BAD_EVENT_QUEUE_ID"
)

type APIError struct {
	Status int
	Code   string
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zulip api error (status %d, code %s): %s", e.Status, e.Code, e.Msg)
}

// IsBadEventQueue reports whether err means the event queue expired and must be registered again.
func IsBadEventQueue(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeBadEventQueueID
}

type apiResponse struct {
	Result     string  `json:"result"`
	Msg        string  `json:"msg"`
	Code       string  `json:"code"`
	RetryAfter float64 `json:"retry-after"`
}

type Profile struct {
	UserID   int64  `json:"user_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type Queue struct {
	ID          string `json:"queue_id"`
	LastEventID int64  `json:"last_event_id"`
}

type Event struct {
	ID      int64    `json:"id"`
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
}

type Recipient struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

const (
	TypePrivate = "private"
	TypeStream  = "stream"
)

type Message struct {
	ID               int64           `json:"id"`
	SenderID         int64           `json:"sender_id"`
	SenderFullName   string          `json:"sender_full_name"`
	SenderEmail      string          `json:"sender_email"`
	Type             string          `json:"type"`
	Content          string          `json:"content"`
	Subject          string          `json:"subject"`
	DisplayRecipient json.RawMessage `json:"display_recipient"`
}

// StreamName returns the stream of a stream message. display_recipient is a plain string there.
func (m *Message) StreamName() string {
	var name string
	if err := json.Unmarshal(m.DisplayRecipient, &name); err != nil {
		return ""
	}
	return name
}

// Recipients returns all participants of a private conversation, including the sender.
func (m *Message) Recipients() []Recipient {
	var recipients []Recipient
	if err := json.Unmarshal(m.DisplayRecipient, &recipients); err != nil {
		return nil
	}
	return recipients
}

type OutgoingMessage struct {
	Type    string
	To      []string
	Topic   string
	Content string
}

type user struct {
	UserID   int64  `json:"user_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     int    `json:"role"`
	IsAdmin  bool   `json:"is_admin"`
}
