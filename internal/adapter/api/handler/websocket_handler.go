package handler

import (
	"context"
	stderrors "errors"
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/middleware"
	"marketchat/internal/domain/repository"
	ws "marketchat/internal/infrastructure/websocket"
	"marketchat/internal/usecase"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

type WebSocketHandler struct {
	baseCtx     context.Context
	chatUseCase *usecase.ChatUseCase
	wsManager   *ws.Manager
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewWebSocketHandler registers itself as the manager's dispatcher. Feeds
// opened for a client live until the client disconnects or baseCtx ends.
func NewWebSocketHandler(baseCtx context.Context, chatUseCase *usecase.ChatUseCase, wsManager *ws.Manager) *WebSocketHandler {
	h := &WebSocketHandler{
		baseCtx:     baseCtx,
		chatUseCase: chatUseCase,
		wsManager:   wsManager,
	}
	wsManager.SetDispatcher(h.Dispatch)
	return h
}

func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	session := middleware.SessionFrom(c)
	if session == nil {
		return errors.Unauthorized("Authentication required", nil)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Warn("WebSocket: upgrade failed for user %s: %v", session.UserID, err)
		return nil
	}

	client := ws.NewClient(h.baseCtx, session, conn, c.QueryParam("compress") == "snappy")
	if !h.wsManager.Add(client) {
		conn.Close()
		return nil
	}

	go client.WritePump()
	go client.ReadPump(h.wsManager)

	return nil
}

// Dispatch runs one client command. Subscriptions push whole snapshots.
func (h *WebSocketHandler) Dispatch(client *ws.Client, msg ws.Inbound) {
	switch msg.Type {
	case ws.MessageTypeSubscribeMessages:
		if msg.ChatID == "" {
			client.Push(ws.NewErrorOutbound("", "BAD_REQUEST", "chat_id is required"))
			return
		}
		chatID := msg.ChatID
		sub, err := h.chatUseCase.SubscribeMessages(client.Context(), client.Session, chatID, func(messages []*usecase.MessageResponse) {
			client.Push(ws.NewOutbound(ws.MessageTypeMessages, chatID, messages))
		})
		if err != nil {
			pushError(client, chatID, err)
			return
		}
		client.Subscribe(ws.MessagesKey(chatID), sub)
		go reportTermination(client, chatID, sub)

	case ws.MessageTypeUnsubscribeMessages:
		client.Unsubscribe(ws.MessagesKey(msg.ChatID))

	case ws.MessageTypeSubscribeChats:
		sub, err := h.chatUseCase.SubscribeConversations(client.Context(), client.Session, func(chats []*usecase.ChatResponse) {
			client.Push(ws.NewOutbound(ws.MessageTypeChats, "", chats))
		})
		if err != nil {
			pushError(client, "", err)
			return
		}
		client.Subscribe(ws.ChatsKey, sub)
		go reportTermination(client, "", sub)

	case ws.MessageTypeUnsubscribeChats:
		client.Unsubscribe(ws.ChatsKey)

	default:
		logger.Debug("WebSocket: unknown message type %q from client %s", msg.Type, client.ID)
		client.Push(ws.NewErrorOutbound(msg.ChatID, "BAD_REQUEST", "Unknown message type"))
	}
}

// reportTermination tells the client when a feed dies on its own.
func reportTermination(client *ws.Client, chatID string, sub repository.Subscription) {
	<-sub.Done()
	if err := sub.Err(); err != nil {
		pushError(client, chatID, err)
	}
}

func pushError(client *ws.Client, chatID string, err error) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		client.Push(ws.NewErrorOutbound(chatID, appErr.Code, appErr.Message))
		return
	}
	logger.Error("WebSocket: command failed for client %s: %v", client.ID, err)
	client.Push(ws.NewErrorOutbound(chatID, "INTERNAL_ERROR", "An unexpected error occurred"))
}
