package handler

import (
	"context"

	ws "marketchat/internal/infrastructure/websocket"
	"marketchat/internal/usecase"
)

var (
	chatHandler      *ChatHandler
	webSocketHandler *WebSocketHandler
)

func Setup(ctx context.Context, chatUseCase *usecase.ChatUseCase, wsManager *ws.Manager) {
	chatHandler = NewChatHandler(chatUseCase)
	webSocketHandler = NewWebSocketHandler(ctx, chatUseCase, wsManager)
}

func GetChatHandler() *ChatHandler {
	return chatHandler
}

func GetWebSocketHandler() *WebSocketHandler {
	return webSocketHandler
}
