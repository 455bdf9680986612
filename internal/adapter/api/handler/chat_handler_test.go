package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatBody struct {
	ID            string         `json:"id"`
	OtherUserID   string         `json:"other_user_id"`
	OtherUserName string         `json:"other_user_name"`
	LastMessage   string         `json:"last_message"`
	UnreadCount   map[string]int `json:"unread_count"`
	Unread        int            `json:"unread"`
	Created       bool           `json:"created"`
}

type messageBody struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	SenderID     string `json:"sender_id"`
	SenderName   string `json:"sender_name"`
	IsMine       bool   `json:"is_mine"`
	SummaryStale bool   `json:"summary_stale"`
}

func TestResolveChatCreatesOnceAndReuses(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/v1/chats", env.token(t, "u1", "Ann"), map[string]string{"recipient_id": "u2"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var first chatBody
	require.NoError(t, json.Unmarshal(body.Data, &first))
	assert.Equal(t, "u1_u2", first.ID)
	assert.True(t, first.Created)
	assert.Equal(t, "Ben", first.OtherUserName)
	assert.Equal(t, map[string]int{"u1": 0, "u2": 0}, first.UnreadCount)

	rec, body = env.do(t, http.MethodPost, "/v1/chats", env.token(t, "u2", "Ben"), map[string]string{"recipient_id": "u1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var second chatBody
	require.NoError(t, json.Unmarshal(body.Data, &second))
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.Created)
}

func TestResolveChatValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "u1", "Ann")

	tests := []struct {
		name   string
		body   map[string]string
		status int
		code   string
	}{
		{"missing recipient", map[string]string{}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"blank recipient", map[string]string{"recipient_id": "  "}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"separator", map[string]string{"recipient_id": "a_b"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"self", map[string]string{"recipient_id": "u1"}, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown user", map[string]string{"recipient_id": "ghost"}, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodPost, "/v1/chats", token, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestChatRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/v1/chats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/v1/chats", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSendReadAndListFlow(t *testing.T) {
	env := newTestEnv(t)
	ann, ben, cat := env.token(t, "u1", "Ann"), env.token(t, "u2", "Ben"), env.token(t, "u3", "Cat")

	rec, _ := env.do(t, http.MethodPost, "/v1/chats", ann, map[string]string{"recipient_id": "u2"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := env.do(t, http.MethodPost, "/v1/chats/u1_u2/messages", ann, map[string]string{"text": "Hello"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var msg messageBody
	require.NoError(t, json.Unmarshal(body.Data, &msg))
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "Hello", msg.Text)
	assert.Equal(t, "Ann", msg.SenderName)
	assert.True(t, msg.IsMine)
	assert.False(t, msg.SummaryStale)

	rec, body = env.do(t, http.MethodGet, "/v1/chats/u1_u2", ben, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var chat chatBody
	require.NoError(t, json.Unmarshal(body.Data, &chat))
	assert.Equal(t, "Hello", chat.LastMessage)
	assert.Equal(t, 1, chat.Unread)

	rec, _ = env.do(t, http.MethodPut, "/v1/chats/u1_u2/read", ben, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/v1/chats?limit=10", ben, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []chatBody `json:"items"`
		Total int64      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &page))
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 0, page.Items[0].Unread)
	assert.Equal(t, "u1", page.Items[0].OtherUserID)

	rec, body = env.do(t, http.MethodGet, "/v1/chats/u1_u2/messages", ben, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var messages struct {
		Items []messageBody `json:"items"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &messages))
	require.Len(t, messages.Items, 1)
	assert.False(t, messages.Items[0].IsMine)

	rec, body = env.do(t, http.MethodPost, "/v1/chats/u1_u2/messages", cat, map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "FORBIDDEN", body.Error.Code)
}

func TestSendMessageRejectsBlankText(t *testing.T) {
	env := newTestEnv(t)
	ann := env.token(t, "u1", "Ann")
	env.do(t, http.MethodPost, "/v1/chats", ann, map[string]string{"recipient_id": "u2"})

	rec, body := env.do(t, http.MethodPost, "/v1/chats/u1_u2/messages", ann, map[string]string{"text": " \t "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
}
