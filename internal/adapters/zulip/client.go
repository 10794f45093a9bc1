package zulip

import (
	"context"
	"csbot/internal/core/domain"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Client is a minimal Zulip REST API client covering what the bot needs: its own profile, an event
// queue, sending messages and looking up users.
type Client struct {
	http *resty.Client
}

const (
	apiPath = "/api/v1"
	// Long-polling requests are held open by the server for up to about a minute before a heartbeat.
	requestTimeout    = 2 * time.Minute
	defaultRetryAfter = time.Second
	userAgent         = "csbot"
)

func NewClient(site, email, key string) *Client {
	c := resty.New().
		SetBaseURL(baseURL(site)).
		SetBasicAuth(email, key).
		SetTimeout(requestTimeout).
		SetHeader("User-Agent", userAgent)

	return &Client{http: c}
}

func baseURL(site string) string {
	site = strings.TrimRight(strings.TrimSpace(site), "/")
	if !strings.HasPrefix(site, "http://") && !strings.HasPrefix(site, "https://") {
		site = "https://" + site
	}
	site = strings.TrimSuffix(site, "/api")

	return site + apiPath
}

func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var p Profile
	err := c.call(ctx, http.MethodGet, "/users/me", nil, &p)
	return p, err
}

// RegisterQueue creates an event queue receiving message events with raw markdown content.
func (c *Client) RegisterQueue(ctx context.Context) (Queue, error) {
	var q Queue
	err := c.call(ctx, http.MethodPost, "/register", map[string]string{
		"event_types":    `["message"]`,
		"apply_markdown": "false",
	}, &q)
	return q, err
}

// Events long-polls the queue for events newer than lastEventID.
func (c *Client) Events(ctx context.Context, queue Queue) ([]Event, error) {
	var res struct {
		Events []Event `json:"events"`
	}
	err := c.call(ctx, http.MethodGet, "/events", map[string]string{
		"queue_id":      queue.ID,
		"last_event_id": strconv.FormatInt(queue.LastEventID, 10),
	}, &res)
	return res.Events, err
}

// SendMessage posts a message and returns its ID. Private messages are addressed to all emails in
// To, stream messages to the stream To[0] and the given topic.
func (c *Client) SendMessage(ctx context.Context, msg OutgoingMessage) (int64, error) {
	if len(msg.To) == 0 {
		return 0, errors.New("message without recipient")
	}

	params := map[string]string{
		"type":    msg.Type,
		"content": msg.Content,
	}

	switch msg.Type {
	case TypePrivate:
		to, err := json.Marshal(msg.To)
		if err != nil {
			return 0, fmt.Errorf("failed to encode recipients: %w", err)
		}
		params["to"] = string(to)
	case TypeStream:
		params["to"] = msg.To[0]
		params["topic"] = msg.Topic
	default:
		return 0, fmt.Errorf("unsupported message type %q", msg.Type)
	}

	var res struct {
		ID int64 `json:"id"`
	}
	err := c.call(ctx, http.MethodPost, "/messages", params, &res)
	return res.ID, err
}

func (c *Client) User(ctx context.Context, userID int64) (domain.User, error) {
	var res struct {
		User user `json:"user"`
	}
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/users/%d", userID), nil, &res); err != nil {
		return domain.User{}, err
	}

	return domain.User{
		ID:       res.User.UserID,
		FullName: res.User.FullName,
		Email:    res.User.Email,
		Role:     res.User.Role,
		IsAdmin:  res.User.IsAdmin,
	}, nil
}

// call performs a request and decodes a successful response into out. Requests rejected by the
// rate limiter are retried after the period the server asks for, until ctx is done.
func (c *Client) call(ctx context.Context, method, path string, params map[string]string, out any) error {
	for {
		req := c.http.R().SetContext(ctx)
		if method == http.MethodGet {
			req.SetQueryParams(params)
		} else {
			req.SetFormData(params)
		}

		resp, err := req.Execute(method, path)
		if err != nil {
			return fmt.Errorf("zulip request %s %s failed: %w", method, path, err)
		}

		rateLimited := resp.StatusCode() == http.StatusTooManyRequests

		var base apiResponse
		if err := json.Unmarshal(resp.Body(), &base); err != nil && !rateLimited {
			return fmt.Errorf("unexpected zulip response (status %d): %w", resp.StatusCode(), err)
		}

		if base.Result == "success" {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("failed to decode zulip response: %w", err)
			}
			return nil
		}

		if base.Code != CodeRateLimitHit && !rateLimited {
			return &APIError{Status: resp.StatusCode(), Code: base.Code, Msg: base.Msg}
		}

		wait := retryAfter(base, resp.Header())
		log.Warn().Str("path", path).Dur("wait", wait).Msg("hit API rate limit, waiting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func retryAfter(base apiResponse, header http.Header) time.Duration {
	if base.RetryAfter > 0 {
		return time.Duration(base.RetryAfter * float64(time.Second))
	}

	if secs, err := strconv.ParseFloat(header.Get("Retry-After"), 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}

	return defaultRetryAfter
}
