package repository

import (
	"context"

	"marketchat/internal/domain/entity"
)

// Subscription is a live feed registered with the store. Cancel stops it;
// once Cancel returns the feed's callback is never invoked again. Cancel must
// not be called from inside the callback; cancel the feed's context instead.
type Subscription interface {
	Cancel()
	// Done is closed when the feed stops, either through Cancel, context
	// cancellation or a storage failure.
	Done() <-chan struct{}
	// Err reports why the feed stopped. It is nil after a plain Cancel.
	Err() error
}

type ChatRepository interface {
	// Conversation directory
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	CreateIfAbsent(ctx context.Context, conversation *entity.Conversation) (bool, error)
	ListByParticipant(ctx context.Context, userID string) ([]*entity.Conversation, error)

	// Conversation summary and unread counters. UpdateSummary applies the
	// unread increment named in update atomically with the summary fields.
	UpdateSummary(ctx context.Context, chatID string, update entity.SummaryUpdate) error
	ResetUnread(ctx context.Context, chatID, userID string) error

	// Message log
	AppendMessage(ctx context.Context, message *entity.Message) error
	ListMessages(ctx context.Context, chatID string) ([]*entity.Message, error)

	// Push feeds
	WatchMessages(ctx context.Context, chatID string, fn func([]*entity.Message)) (Subscription, error)
	WatchConversations(ctx context.Context, userID string, fn func([]*entity.Conversation)) (Subscription, error)
}

// AtomicSender is implemented by stores that can append a message and apply
// its summary update in a single transaction.
type AtomicSender interface {
	AppendMessageWithSummary(ctx context.Context, message *entity.Message, update entity.SummaryUpdate) error
}
