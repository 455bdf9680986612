package handler

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/middleware"
	"marketchat/internal/usecase"
	"marketchat/pkg/errors"
	"marketchat/pkg/response"
	"marketchat/pkg/utils"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type resolveChatRequest struct {
	RecipientID string `json:"recipient_id" validate:"required,notblank,excludes=_"`
	ListingID   string `json:"listing_id"`
}

type sendMessageRequest struct {
	Text string `json:"text" validate:"required,notblank,max=2000"`
}

// ResolveChat opens the chat with recipient_id, creating it on first contact.
func (h *ChatHandler) ResolveChat(c echo.Context) error {
	var req resolveChatRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	chat, err := h.chatUseCase.ResolveConversation(c.Request().Context(), middleware.SessionFrom(c), req.RecipientID, req.ListingID)
	if err != nil {
		return response.Error(c, err)
	}

	if chat.Created {
		return response.Created(c, chat)
	}
	return response.Success(c, chat)
}

func (h *ChatHandler) GetUserChats(c echo.Context) error {
	pagination := utils.GetPaginationParams(c, 20)

	chats, total, err := h.chatUseCase.ListConversations(c.Request().Context(), middleware.SessionFrom(c), pagination.Limit, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessPaginated(c, chats, int64(total), pagination.Limit, pagination.Offset)
}

func (h *ChatHandler) GetChatByID(c echo.Context) error {
	chat, err := h.chatUseCase.GetConversation(c.Request().Context(), middleware.SessionFrom(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, chat)
}

func (h *ChatHandler) MarkChatAsRead(c echo.Context) error {
	if err := h.chatUseCase.MarkAsRead(c.Request().Context(), middleware.SessionFrom(c), c.Param("id")); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"message": "Chat marked as read"})
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), middleware.SessionFrom(c), c.Param("id"), req.Text)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

func (h *ChatHandler) GetChatMessages(c echo.Context) error {
	pagination := utils.GetPaginationParams(c, 50)

	messages, total, err := h.chatUseCase.GetMessages(c.Request().Context(), middleware.SessionFrom(c), c.Param("id"), pagination.Limit, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessPaginated(c, messages, int64(total), pagination.Limit, pagination.Offset)
}
