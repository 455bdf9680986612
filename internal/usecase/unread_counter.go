package usecase

import (
	"context"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

// UnreadCounter maintains per-participant unread counts. Increments are
// applied by the store, never as a read-modify-write here.
type UnreadCounter struct {
	chatRepo repository.ChatRepository
}

func NewUnreadCounter(chatRepo repository.ChatRepository) *UnreadCounter {
	return &UnreadCounter{chatRepo: chatRepo}
}

// Increment adds one to recipientID's counter as part of update. The store
// commits it as an atomic increment in the same write as the summary.
func (u *UnreadCounter) Increment(update *entity.SummaryUpdate, recipientID string) error {
	if update == nil || recipientID == "" {
		return errors.BadRequest("Recipient is required", nil)
	}
	if recipientID == update.LastMessageSender {
		return errors.BadRequest("Sender's own counter is never incremented", nil)
	}
	update.IncrementUnreadFor = recipientID
	return nil
}

// Reset sets readerID's counter to zero. A concurrent increment on the same
// field may land before or after; the last write wins.
func (u *UnreadCounter) Reset(ctx context.Context, chatID, readerID string) error {
	if chatID == "" || readerID == "" {
		return errors.BadRequest("Chat ID and reader are required", nil)
	}
	if err := u.chatRepo.ResetUnread(ctx, chatID, readerID); err != nil {
		logger.Error("UnreadCounter.Reset: chat %s reader %s: %v", chatID, readerID, err)
		return err
	}
	return nil
}
