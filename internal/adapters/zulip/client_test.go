package zulip

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		site string
		want string
	}{
		{site: "https://zulip.example.com", want: "https://zulip.example.com/api/v1"},
		{site: "https://zulip.example.com/", want: "https://zulip.example.com/api/v1"},
		{site: "zulip.example.com", want: "https://zulip.example.com/api/v1"},
		{site: "http://localhost:9991/api", want: "http://localhost:9991/api/v1"},
	}

	for _, tc := range tests {
		t.Run(tc.site, func(t *testing.T) {
			assert.Equal(t, tc.want, baseURL(tc.site))
		})
	}
}

func TestClient_Profile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/users/me", r.URL.Path)

		user, key, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "secret", key)

		writeJSON(t, w, http.StatusOK, map[string]any{
			"result":    "success",
			"user_id":   42,
			"full_name": "CS Bot",
			"email":     "bot@example.com",
		})
	}))
	defer srv.Close()

	p, err := NewClient(srv.URL, "bot@example.com", "secret").Profile(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, Profile{UserID: 42, FullName: "CS Bot", Email: "bot@example.com"}, p)
}

func TestClient_RegisterQueueAndEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/register":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, `["message"]`, r.PostForm.Get("event_types"))
			assert.Equal(t, "false", r.PostForm.Get("apply_markdown"))

			writeJSON(t, w, http.StatusOK, map[string]any{
				"result": "success", "queue_id": "q1", "last_event_id": -1,
			})
		case "/api/v1/events":
			assert.Equal(t, "q1", r.URL.Query().Get("queue_id"))
			assert.Equal(t, "-1", r.URL.Query().Get("last_event_id"))

			writeJSON(t, w, http.StatusOK, map[string]any{
				"result": "success",
				"events": []any{
					map[string]any{"id": 0, "type": "heartbeat"},
					map[string]any{
						"id":    1,
						"type":  "message",
						"flags": []string{"mentioned"},
						"message": map[string]any{
							"id": 100, "sender_id": 7, "sender_full_name": "Jane Doe",
							"sender_email": "jane@example.com", "type": "stream",
							"content": "@**CS Bot** help", "subject": "bots",
							"display_recipient": "general",
						},
					},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bot@example.com", "secret")

	q, err := c.RegisterQueue(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, Queue{ID: "q1", LastEventID: -1}, q)

	events, err := c.Events(testContext(t), q)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "heartbeat", events[0].Type)
	assert.Nil(t, events[0].Message)

	require.NotNil(t, events[1].Message)
	assert.Equal(t, "general", events[1].Message.StreamName())
	assert.Nil(t, events[1].Message.Recipients())
	assert.Equal(t, "bots", events[1].Message.Subject)
}

func TestMessage_Recipients(t *testing.T) {
	msg := Message{DisplayRecipient: json.RawMessage(
		`[{"id":7,"email":"jane@example.com","full_name":"Jane Doe"},{"id":42,"email":"bot@example.com","full_name":"CS Bot"}]`)}

	assert.Equal(t, []Recipient{
		{ID: 7, Email: "jane@example.com", FullName: "Jane Doe"},
		{ID: 42, Email: "bot@example.com", FullName: "CS Bot"},
	}, msg.Recipients())
	assert.Empty(t, msg.StreamName())
}

func TestClient_SendMessage(t *testing.T) {
	tests := []struct {
		name      string
		msg       OutgoingMessage
		wantForm  map[string]string
		wantErr   bool
		wantCalls int32
	}{
		{
			name: "private",
			msg:  OutgoingMessage{Type: TypePrivate, To: []string{"a@example.com", "b@example.com"}, Content: "hi"},
			wantForm: map[string]string{
				"type": "private", "to": `["a@example.com","b@example.com"]`, "content": "hi", "topic": "",
			},
			wantCalls: 1,
		},
		{
			name: "stream",
			msg:  OutgoingMessage{Type: TypeStream, To: []string{"general"}, Topic: "bots", Content: "hi"},
			wantForm: map[string]string{
				"type": "stream", "to": "general", "content": "hi", "topic": "bots",
			},
			wantCalls: 1,
		},
		{
			name:    "no recipient",
			msg:     OutgoingMessage{Type: TypeStream, Content: "hi"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			msg:     OutgoingMessage{Type: "carrier-pigeon", To: []string{"x"}, Content: "hi"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				assert.Equal(t, "/api/v1/messages", r.URL.Path)
				assert.NoError(t, r.ParseForm())
				for k, v := range tc.wantForm {
					assert.Equal(t, v, r.PostForm.Get(k), k)
				}
				writeJSON(t, w, http.StatusOK, map[string]any{"result": "success", "id": 99})
			}))
			defer srv.Close()

			id, err := NewClient(srv.URL, "bot@example.com", "secret").SendMessage(testContext(t), tc.msg)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, int64(99), id)
			}
			assert.Equal(t, tc.wantCalls, calls.Load())
		})
	}
}

func TestClient_User(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/7", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]any{
			"result": "success",
			"user": map[string]any{
				"user_id": 7, "full_name": "Jane Doe", "email": "jane@example.com", "role": 200, "is_admin": true,
			},
		})
	}))
	defer srv.Close()

	u, err := NewClient(srv.URL, "bot@example.com", "secret").User(testContext(t), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, 200, u.Role)
	assert.True(t, u.IsAdmin)
}

func TestClient_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(t, w, http.StatusTooManyRequests, map[string]any{
				"result": "error", "code": CodeRateLimitHit, "msg": "API usage exceeded rate limit", "retry-after": 0.01,
			})
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"result": "success", "user_id": 42, "full_name": "CS Bot"})
	}))
	defer srv.Close()

	p, err := NewClient(srv.URL, "bot@example.com", "secret").Profile(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.UserID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_RetriesOnPlainTextRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.01")
			w.WriteHeader(http.StatusTooManyRequests)
			_, err := w.Write([]byte("<html>slow down</html>"))
			assert.NoError(t, err)
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]any{"result": "success", "user_id": 42, "full_name": "CS Bot"})
	}))
	defer srv.Close()

	p, err := NewClient(srv.URL, "bot@example.com", "secret").Profile(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.UserID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, map[string]any{
			"result": "error", "code": CodeBadEventQueueID, "msg": "Bad event queue ID: q1",
		})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "bot@example.com", "secret").Events(testContext(t), Queue{ID: "q1"})
	require.Error(t, err)
	assert.True(t, IsBadEventQueue(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Bad event queue ID: q1", apiErr.Msg)
}

func TestClient_InvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, err := w.Write([]byte("<html>bad gateway</html>"))
		assert.NoError(t, err)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "bot@example.com", "secret").Profile(testContext(t))
	require.Error(t, err)
	assert.False(t, IsBadEventQueue(err))
}
