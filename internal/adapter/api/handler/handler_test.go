package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"marketchat/internal/adapter/api"
	"marketchat/internal/adapter/api/middleware"
	"marketchat/internal/adapter/repository"
	"marketchat/internal/domain/entity"
	"marketchat/internal/infrastructure/firebase"
	ws "marketchat/internal/infrastructure/websocket"
	"marketchat/internal/usecase"
)

type testEnv struct {
	e        *echo.Echo
	tokens   *firebase.DevTokens
	users    *repository.MemoryUserRepository
	chats    *repository.MemoryChatRepository
	uc       *usecase.ChatUseCase
	auth     *middleware.AuthMiddleware
	wsManager *ws.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	env := &testEnv{
		e:      echo.New(),
		tokens: firebase.NewDevTokens("test-secret", time.Hour),
		users:  repository.NewMemoryUserRepository(),
		chats:  repository.NewMemoryChatRepository(),
	}
	env.e.Validator = api.NewValidator()
	env.auth = middleware.NewAuthMiddleware(env.tokens)
	env.uc = usecase.NewChatUseCase(env.chats, env.users, repository.NewMemoryListingRepository(), nil, false)
	env.wsManager = ws.NewManager(nil)

	for _, u := range []*entity.User{{ID: "u1", Name: "Ann"}, {ID: "u2", Name: "Ben"}, {ID: "u3", Name: "Cat"}} {
		env.users.Put(u)
	}

	chat := NewChatHandler(env.uc)
	g := env.e.Group("/v1/chats", env.auth.Authenticate)
	g.POST("", chat.ResolveChat)
	g.GET("", chat.GetUserChats)
	g.GET("/:id", chat.GetChatByID)
	g.PUT("/:id/read", chat.MarkChatAsRead)
	g.POST("/:id/messages", chat.SendMessage)
	g.GET("/:id/messages", chat.GetChatMessages)

	wsHandler := NewWebSocketHandler(ctx, env.uc, env.wsManager)
	env.wsManager.Start(ctx)
	env.e.GET("/ws", wsHandler.HandleWebSocket, env.auth.AuthenticateQuery)

	return env
}

func (env *testEnv) token(t *testing.T, uid, name string) string {
	t.Helper()
	token, err := env.tokens.Issue(uid, name, "")
	require.NoError(t, err)
	return token
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (env *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	var out envelope
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}
