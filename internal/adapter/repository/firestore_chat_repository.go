package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

const (
	chatsCollection    = "chats"
	messagesCollection = "messages"
)

type firestoreChatRepository struct {
	client *firestore.Client
}

// NewFirestoreChatRepository returns a store that also implements
// repository.AtomicSender.
func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{
		client: client,
	}
}

func (r *firestoreChatRepository) chats() *firestore.CollectionRef {
	return r.client.Collection(chatsCollection)
}

func (r *firestoreChatRepository) messages(chatID string) *firestore.CollectionRef {
	return r.chats().Doc(chatID).Collection(messagesCollection)
}

func (r *firestoreChatRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	doc, err := r.chats().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Chat", err)
		}
		return nil, errors.FromStore("Failed to get chat", err)
	}

	return conversationFromDoc(doc)
}

// CreateIfAbsent performs a single conditional create. An existing document
// is left untouched and reported as created=false.
func (r *firestoreChatRepository) CreateIfAbsent(ctx context.Context, conversation *entity.Conversation) (bool, error) {
	conversation.CreatedAt = time.Time{}
	conversation.LastMessageTime = time.Time{}

	wr, err := r.chats().Doc(conversation.ID).Create(ctx, conversation)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		logger.Error("CreateIfAbsent: failed to create chat %s: %v", conversation.ID, err)
		return false, errors.FromStore("Failed to create chat", err)
	}

	conversation.CreatedAt = wr.UpdateTime
	conversation.LastMessageTime = wr.UpdateTime
	return true, nil
}

func (r *firestoreChatRepository) ListByParticipant(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	docs, err := r.participantQuery(userID).Documents(ctx).GetAll()
	if err != nil {
		logger.Error("ListByParticipant: firestore error for user %s: %v", userID, err)
		return nil, errors.FromStore("Failed to fetch chats", err)
	}

	return conversationsFromDocs(docs, userID), nil
}

// participantQuery orders by most recent activity, breaking ties on the
// document id so the order is stable.
func (r *firestoreChatRepository) participantQuery(userID string) firestore.Query {
	return r.chats().
		Where("participants", "array-contains", userID).
		OrderBy("lastMessageTime", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Asc)
}

func (r *firestoreChatRepository) UpdateSummary(ctx context.Context, chatID string, update entity.SummaryUpdate) error {
	_, err := r.chats().Doc(chatID).Update(ctx, summaryUpdates(update))
	if err != nil {
		logger.Error("UpdateSummary: failed to update chat %s: %v", chatID, err)
		return errors.FromStore("Failed to update chat summary", err)
	}
	return nil
}

func summaryUpdates(update entity.SummaryUpdate) []firestore.Update {
	updates := []firestore.Update{
		{Path: "lastMessage", Value: update.LastMessage},
		{Path: "lastMessageTime", Value: firestore.ServerTimestamp},
		{Path: "lastMessageSender", Value: update.LastMessageSender},
	}
	if update.IncrementUnreadFor != "" {
		updates = append(updates, firestore.Update{
			FieldPath: firestore.FieldPath{"unreadCount", update.IncrementUnreadFor},
			Value:     firestore.Increment(1),
		})
	}
	return updates
}

func (r *firestoreChatRepository) ResetUnread(ctx context.Context, chatID, userID string) error {
	_, err := r.chats().Doc(chatID).Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{"unreadCount", userID}, Value: 0},
	})
	if err != nil {
		return errors.FromStore("Failed to reset unread count", err)
	}
	return nil
}

func (r *firestoreChatRepository) AppendMessage(ctx context.Context, message *entity.Message) error {
	ref := r.messages(message.ChatID).NewDoc()
	message.ID = ref.ID
	message.Read = false
	message.CreatedAt = time.Time{}

	wr, err := ref.Create(ctx, message)
	if err != nil {
		logger.Error("AppendMessage: failed to create message for chat %s: %v", message.ChatID, err)
		return errors.FromStore("Failed to create message", err)
	}

	// createdAt was written as the commit time.
	message.CreatedAt = wr.UpdateTime
	return nil
}

// AppendMessageWithSummary writes the message and its summary update in one
// transaction. Either both land or neither does.
func (r *firestoreChatRepository) AppendMessageWithSummary(ctx context.Context, message *entity.Message, update entity.SummaryUpdate) error {
	msgRef := r.messages(message.ChatID).NewDoc()
	chatRef := r.chats().Doc(message.ChatID)
	message.ID = msgRef.ID
	message.Read = false
	message.CreatedAt = time.Time{}

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(msgRef, message); err != nil {
			return err
		}
		return tx.Update(chatRef, summaryUpdates(update))
	})
	if err != nil {
		logger.Error("AppendMessageWithSummary: transaction failed for chat %s: %v", message.ChatID, err)
		return errors.FromStore("Failed to send message", err)
	}

	doc, err := msgRef.Get(ctx)
	if err != nil {
		logger.Warn("AppendMessageWithSummary: message %s committed but could not be re-read: %v", message.ID, err)
		message.CreatedAt = time.Now()
		return nil
	}
	if stored, err := messageFromDoc(doc); err == nil {
		message.CreatedAt = stored.CreatedAt
	}
	return nil
}

func (r *firestoreChatRepository) ListMessages(ctx context.Context, chatID string) ([]*entity.Message, error) {
	docs, err := r.messages(chatID).OrderBy("createdAt", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		logger.Error("ListMessages: firestore error for chat %s: %v", chatID, err)
		return nil, errors.FromStore("Failed to fetch messages", err)
	}

	return messagesFromDocs(docs, chatID), nil
}

func (r *firestoreChatRepository) WatchMessages(ctx context.Context, chatID string, fn func([]*entity.Message)) (repository.Subscription, error) {
	f := newFeed(ctx)
	it := r.messages(chatID).OrderBy("createdAt", firestore.Asc).Snapshots(f.ctx)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				f.finish(watchError(f.ctx, "Message feed failed", err))
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				f.finish(watchError(f.ctx, "Message feed failed", err))
				return
			}

			messages := messagesFromDocs(docs, chatID)
			f.deliver(func() { fn(messages) })
		}
	}()

	return f, nil
}

func (r *firestoreChatRepository) WatchConversations(ctx context.Context, userID string, fn func([]*entity.Conversation)) (repository.Subscription, error) {
	f := newFeed(ctx)
	it := r.participantQuery(userID).Snapshots(f.ctx)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				f.finish(watchError(f.ctx, "Chat feed failed", err))
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				f.finish(watchError(f.ctx, "Chat feed failed", err))
				return
			}

			conversations := conversationsFromDocs(docs, userID)
			f.deliver(func() { fn(conversations) })
		}
	}()

	return f, nil
}

// watchError returns nil for feeds stopped by their owner.
func watchError(ctx context.Context, message string, err error) error {
	if ctx.Err() != nil || status.Code(err) == codes.Canceled {
		return nil
	}
	logger.Error("%s: %v", message, err)
	return errors.FromStore(message, err)
}

func conversationFromDoc(doc *firestore.DocumentSnapshot) (*entity.Conversation, error) {
	var conversation entity.Conversation
	if err := doc.DataTo(&conversation); err != nil {
		return nil, errors.Internal("Failed to parse chat data", err)
	}
	conversation.ID = doc.Ref.ID
	if conversation.UnreadCount == nil {
		conversation.UnreadCount = make(map[string]int)
	}
	return &conversation, nil
}

func conversationsFromDocs(docs []*firestore.DocumentSnapshot, userID string) []*entity.Conversation {
	conversations := make([]*entity.Conversation, 0, len(docs))
	for _, doc := range docs {
		conversation, err := conversationFromDoc(doc)
		if err != nil {
			logger.Warn("Skipping malformed chat %s for user %s: %v", doc.Ref.ID, userID, err)
			continue
		}
		conversations = append(conversations, conversation)
	}
	return conversations
}

func messageFromDoc(doc *firestore.DocumentSnapshot) (*entity.Message, error) {
	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	message.ID = doc.Ref.ID
	return &message, nil
}

func messagesFromDocs(docs []*firestore.DocumentSnapshot, chatID string) []*entity.Message {
	messages := make([]*entity.Message, 0, len(docs))
	for _, doc := range docs {
		message, err := messageFromDoc(doc)
		if err != nil {
			logger.Warn("Skipping malformed message %s in chat %s: %v", doc.Ref.ID, chatID, err)
			continue
		}
		messages = append(messages, message)
	}
	return messages
}
