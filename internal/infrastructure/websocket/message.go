package websocket

import "time"

// Client to server message types
const (
	MessageTypePing                = "ping"
	MessageTypeSubscribeMessages   = "subscribe_messages"
	MessageTypeUnsubscribeMessages = "unsubscribe_messages"
	MessageTypeSubscribeChats      = "subscribe_chats"
	MessageTypeUnsubscribeChats    = "unsubscribe_chats"
)

// Server to client message types
const (
	MessageTypePong     = "pong"
	MessageTypeMessages = "messages"
	MessageTypeChats    = "chats"
	MessageTypeError    = "error"
)

// Inbound is a command sent by the client.
type Inbound struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id,omitempty"`
}

// Outbound is pushed to the client. Data carries a full snapshot for
// messages/chats frames.
type Outbound struct {
	Type      string      `json:"type"`
	ChatID    string      `json:"chat_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorBody  `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewOutbound(msgType, chatID string, data interface{}) Outbound {
	return Outbound{
		Type:      msgType,
		ChatID:    chatID,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func NewErrorOutbound(chatID, code, message string) Outbound {
	out := NewOutbound(MessageTypeError, chatID, nil)
	out.Error = &ErrorBody{Code: code, Message: message}
	return out
}

// MessagesKey and ChatsKey name a client's subscription slots.
func MessagesKey(chatID string) string {
	return "messages:" + chatID
}

const ChatsKey = "chats"
