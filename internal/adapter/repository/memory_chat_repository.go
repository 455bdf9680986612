package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
)

// MemoryChatRepository keeps conversations and messages in process. It has
// the same observable semantics as the Firestore store: conditional create,
// atomic counter updates, strictly increasing server timestamps and
// snapshot feeds.
type MemoryChatRepository struct {
	mu            sync.RWMutex
	conversations map[string]*entity.Conversation
	messages      map[string][]*entity.Message
	watchers      map[*memoryWatcher]struct{}

	clock    func() time.Time
	lastTime time.Time
}

type memoryWatcher struct {
	chatID string // set for message feeds
	userID string // set for conversation feeds
	notify chan struct{}
}

func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{
		conversations: make(map[string]*entity.Conversation),
		messages:      make(map[string][]*entity.Message),
		watchers:      make(map[*memoryWatcher]struct{}),
		clock:         time.Now,
	}
}

var (
	_ repository.ChatRepository = (*MemoryChatRepository)(nil)
	_ repository.AtomicSender   = (*MemoryChatRepository)(nil)
)

// now plays the server timestamp: never goes backwards and never repeats.
// Callers hold r.mu.
func (r *MemoryChatRepository) now() time.Time {
	t := r.clock().UTC().Truncate(time.Microsecond)
	if !t.After(r.lastTime) {
		t = r.lastTime.Add(time.Microsecond)
	}
	r.lastTime = t
	return t
}

func (r *MemoryChatRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.FromStore("Failed to get chat", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	conversation, ok := r.conversations[id]
	if !ok {
		return nil, errors.NotFound("Chat", nil)
	}
	return conversation.Clone(), nil
}

func (r *MemoryChatRepository) CreateIfAbsent(ctx context.Context, conversation *entity.Conversation) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.FromStore("Failed to create chat", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conversations[conversation.ID]; exists {
		return false, nil
	}

	now := r.now()
	conversation.CreatedAt = now
	conversation.LastMessageTime = now
	r.conversations[conversation.ID] = conversation.Clone()
	r.notifyParticipants(conversation.Participants)
	return true, nil
}

func (r *MemoryChatRepository) ListByParticipant(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.FromStore("Failed to fetch chats", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conversationsFor(userID), nil
}

// conversationsFor mirrors the Firestore participant query ordering.
// Callers hold r.mu.
func (r *MemoryChatRepository) conversationsFor(userID string) []*entity.Conversation {
	out := make([]*entity.Conversation, 0)
	for _, c := range r.conversations {
		if c.HasParticipant(userID) {
			out = append(out, c.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastMessageTime.Equal(out[j].LastMessageTime) {
			return out[i].LastMessageTime.After(out[j].LastMessageTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *MemoryChatRepository) UpdateSummary(ctx context.Context, chatID string, update entity.SummaryUpdate) error {
	if err := ctx.Err(); err != nil {
		return errors.FromStore("Failed to update chat summary", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applySummary(chatID, update)
}

// applySummary requires r.mu held for writing.
func (r *MemoryChatRepository) applySummary(chatID string, update entity.SummaryUpdate) error {
	conversation, ok := r.conversations[chatID]
	if !ok {
		return errors.NotFound("Chat", nil)
	}

	conversation.LastMessage = update.LastMessage
	conversation.LastMessageSender = update.LastMessageSender
	conversation.LastMessageTime = r.now()
	if update.IncrementUnreadFor != "" {
		if conversation.UnreadCount == nil {
			conversation.UnreadCount = make(map[string]int)
		}
		conversation.UnreadCount[update.IncrementUnreadFor]++
	}

	r.notifyParticipants(conversation.Participants)
	return nil
}

func (r *MemoryChatRepository) ResetUnread(ctx context.Context, chatID, userID string) error {
	if err := ctx.Err(); err != nil {
		return errors.FromStore("Failed to reset unread count", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, ok := r.conversations[chatID]
	if !ok {
		return errors.NotFound("Chat", nil)
	}
	if conversation.UnreadCount == nil {
		conversation.UnreadCount = make(map[string]int)
	}
	conversation.UnreadCount[userID] = 0

	r.notifyParticipants(conversation.Participants)
	return nil
}

func (r *MemoryChatRepository) AppendMessage(ctx context.Context, message *entity.Message) error {
	if err := ctx.Err(); err != nil {
		return errors.FromStore("Failed to create message", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appendMessage(message)
}

// appendMessage requires r.mu held for writing.
func (r *MemoryChatRepository) appendMessage(message *entity.Message) error {
	if _, ok := r.conversations[message.ChatID]; !ok {
		return errors.NotFound("Chat", nil)
	}

	message.ID = uuid.New().String()
	message.Read = false
	message.CreatedAt = r.now()

	stored := *message
	r.messages[message.ChatID] = append(r.messages[message.ChatID], &stored)
	r.notifyChat(message.ChatID)
	return nil
}

func (r *MemoryChatRepository) AppendMessageWithSummary(ctx context.Context, message *entity.Message, update entity.SummaryUpdate) error {
	if err := ctx.Err(); err != nil {
		return errors.FromStore("Failed to send message", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conversations[message.ChatID]; !ok {
		return errors.NotFound("Chat", nil)
	}
	if err := r.appendMessage(message); err != nil {
		return err
	}
	return r.applySummary(message.ChatID, update)
}

func (r *MemoryChatRepository) ListMessages(ctx context.Context, chatID string) ([]*entity.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.FromStore("Failed to fetch messages", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.messagesFor(chatID), nil
}

// messagesFor requires r.mu held.
func (r *MemoryChatRepository) messagesFor(chatID string) []*entity.Message {
	stored := r.messages[chatID]
	out := make([]*entity.Message, 0, len(stored))
	for _, m := range stored {
		cp := *m
		out = append(out, &cp)
	}
	return out
}

func (r *MemoryChatRepository) WatchMessages(ctx context.Context, chatID string, fn func([]*entity.Message)) (repository.Subscription, error) {
	w := &memoryWatcher{chatID: chatID, notify: make(chan struct{}, 1)}
	return r.watch(ctx, w, func() func() {
		r.mu.RLock()
		messages := r.messagesFor(chatID)
		r.mu.RUnlock()
		return func() { fn(messages) }
	}), nil
}

func (r *MemoryChatRepository) WatchConversations(ctx context.Context, userID string, fn func([]*entity.Conversation)) (repository.Subscription, error) {
	w := &memoryWatcher{userID: userID, notify: make(chan struct{}, 1)}
	return r.watch(ctx, w, func() func() {
		r.mu.RLock()
		conversations := r.conversationsFor(userID)
		r.mu.RUnlock()
		return func() { fn(conversations) }
	}), nil
}

// watch registers w and starts its producer. Notifications coalesce: a burst
// of writes yields at least one snapshot reflecting all of them.
func (r *MemoryChatRepository) watch(ctx context.Context, w *memoryWatcher, snapshot func() func()) *feed {
	f := newFeed(ctx)

	r.mu.Lock()
	r.watchers[w] = struct{}{}
	r.mu.Unlock()

	// A write racing registration may already have filled the slot; either
	// way one snapshot is pending.
	signal(w)

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.watchers, w)
			r.mu.Unlock()
			f.finish(nil)
		}()

		for {
			select {
			case <-f.ctx.Done():
				return
			case <-w.notify:
				f.deliver(snapshot())
			}
		}
	}()

	return f
}

// notifyChat and notifyParticipants require r.mu held.
func (r *MemoryChatRepository) notifyChat(chatID string) {
	for w := range r.watchers {
		if w.chatID != "" && w.chatID == chatID {
			signal(w)
		}
	}
}

func (r *MemoryChatRepository) notifyParticipants(participants []string) {
	for w := range r.watchers {
		if w.userID == "" {
			continue
		}
		for _, p := range participants {
			if p == w.userID {
				signal(w)
				break
			}
		}
	}
}

func signal(w *memoryWatcher) {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}
