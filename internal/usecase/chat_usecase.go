package usecase

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/internal/infrastructure/ratelimit"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
	"marketchat/pkg/utils"
)

// MaxMessageLength caps a single message, in characters.
const MaxMessageLength = 2000

type ChatUseCase struct {
	chatRepo    repository.ChatRepository
	userRepo    repository.UserRepository
	listingRepo repository.ListingRepository
	unread      *UnreadCounter
	rateLimiter *ratelimit.RateLimiter
	atomic      repository.AtomicSender
}

// NewChatUseCase wires the chat operations. rateLimiter may be nil. When
// transactional is set and the store supports it, a send writes the message
// and its summary in one transaction.
func NewChatUseCase(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	listingRepo repository.ListingRepository,
	rateLimiter *ratelimit.RateLimiter,
	transactional bool,
) *ChatUseCase {
	uc := &ChatUseCase{
		chatRepo:    chatRepo,
		userRepo:    userRepo,
		listingRepo: listingRepo,
		unread:      NewUnreadCounter(chatRepo),
		rateLimiter: rateLimiter,
	}

	if transactional {
		if sender, ok := chatRepo.(repository.AtomicSender); ok {
			uc.atomic = sender
		} else {
			logger.Warn("Transactional send requested but the chat store does not support it; using two writes")
		}
	}

	return uc
}

type ChatResponse struct {
	*entity.Conversation
	OtherUserID    string `json:"other_user_id"`
	OtherUserName  string `json:"other_user_name"`
	OtherUserPhoto string `json:"other_user_photo,omitempty"`
	Unread         int    `json:"unread"`
	Created        bool   `json:"created,omitempty"`
}

type MessageResponse struct {
	*entity.Message
	IsMine bool `json:"is_mine"`
	// SummaryStale is set when the message is stored but the conversation
	// summary could not be updated. The next send repairs it.
	SummaryStale bool `json:"summary_stale,omitempty"`
}

func newChatResponse(c *entity.Conversation, viewerID string) *ChatResponse {
	other := c.OtherParticipant(viewerID)
	return &ChatResponse{
		Conversation:   c,
		OtherUserID:    other,
		OtherUserName:  c.ParticipantNames[other],
		OtherUserPhoto: c.ParticipantPhotos[other],
		Unread:         c.UnreadFor(viewerID),
	}
}

func newMessageResponses(messages []*entity.Message, viewerID string) []*MessageResponse {
	out := make([]*MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, &MessageResponse{Message: m, IsMine: m.SenderID == viewerID})
	}
	return out
}

func (uc *ChatUseCase) allow(userID, action, message string) error {
	if uc.rateLimiter == nil {
		return nil
	}
	allowed, wait := uc.rateLimiter.Allow(userID, action)
	if !allowed {
		logger.Warn("%s rate limited: user %s must wait %v", action, userID, wait)
		return errors.TooManyRequests(message, wait)
	}
	return nil
}

func validateUserID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.BadRequest("User ID is required", nil)
	}
	if strings.Contains(id, entity.ConversationIDSeparator) {
		return errors.BadRequest("User ID must not contain '"+entity.ConversationIDSeparator+"'", nil)
	}
	return nil
}

// ResolveConversation returns the conversation between the session user and
// otherUserID, creating it on first contact. Participant metadata and the
// optional listing are frozen at creation; later calls never rewrite them.
func (uc *ChatUseCase) ResolveConversation(ctx context.Context, session *entity.Session, otherUserID, listingID string) (*ChatResponse, error) {
	if err := validateUserID(session.UserID); err != nil {
		return nil, err
	}
	if err := validateUserID(otherUserID); err != nil {
		return nil, err
	}
	if session.UserID == otherUserID {
		return nil, errors.BadRequest("You cannot create a chat with yourself", nil)
	}
	if err := uc.allow(session.UserID, ratelimit.ActionResolveChat, "Rate limit exceeded. Please wait before opening another chat"); err != nil {
		return nil, err
	}

	var (
		other   *entity.User
		self    *entity.User
		listing *entity.Listing
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := uc.userRepo.GetByID(gctx, otherUserID)
		if err != nil {
			logger.Error("ResolveConversation: user %s lookup failed: %v", otherUserID, err)
			return err
		}
		other = u
		return nil
	})
	if session.DisplayName == "" || session.PhotoURL == "" {
		g.Go(func() error {
			u, err := uc.userRepo.GetByID(gctx, session.UserID)
			if err != nil {
				if errors.Is(err, "NOT_FOUND") {
					return nil
				}
				return err
			}
			self = u
			return nil
		})
	}
	if listingID != "" {
		g.Go(func() error {
			l, err := uc.listingRepo.GetByID(gctx, listingID)
			if err != nil {
				logger.Error("ResolveConversation: listing %s lookup failed: %v", listingID, err)
				return err
			}
			listing = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	selfName, selfPhoto := session.DisplayName, session.PhotoURL
	if self != nil {
		if selfName == "" {
			selfName = self.Name
		}
		if selfPhoto == "" {
			selfPhoto = self.PhotoURL
		}
	}

	conversation := &entity.Conversation{
		ID:                entity.ConversationID(session.UserID, otherUserID),
		Participants:      []string{session.UserID, otherUserID},
		ParticipantNames:  map[string]string{session.UserID: selfName, otherUserID: other.Name},
		ParticipantPhotos: map[string]string{session.UserID: selfPhoto, otherUserID: other.PhotoURL},
		UnreadCount:       map[string]int{session.UserID: 0, otherUserID: 0},
	}
	if listing != nil {
		conversation.ListingID = listingID
		conversation.ListingTitle = listing.Title
		conversation.ListingImage = listing.Image()
	}

	created, err := uc.chatRepo.CreateIfAbsent(ctx, conversation)
	if err != nil {
		return nil, err
	}

	stored := conversation
	if !created {
		stored, err = uc.chatRepo.GetByID(ctx, conversation.ID)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Info("Chat %s created by %s", conversation.ID, session.UserID)
	}

	resp := newChatResponse(stored, session.UserID)
	resp.Created = created
	return resp, nil
}

// participantChat loads a conversation the session user belongs to.
func (uc *ChatUseCase) participantChat(ctx context.Context, session *entity.Session, chatID string) (*entity.Conversation, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, errors.BadRequest("Chat ID is required", nil)
	}

	conversation, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(session.UserID) {
		return nil, errors.Forbidden("You are not a participant in this chat", nil)
	}
	return conversation, nil
}

func (uc *ChatUseCase) GetConversation(ctx context.Context, session *entity.Session, chatID string) (*ChatResponse, error) {
	conversation, err := uc.participantChat(ctx, session, chatID)
	if err != nil {
		return nil, err
	}
	return newChatResponse(conversation, session.UserID), nil
}

// SendMessage appends text to the conversation log and then updates the
// summary, bumping the recipient's unread counter. If the summary update
// fails the message stays stored and the response is flagged stale.
func (uc *ChatUseCase) SendMessage(ctx context.Context, session *entity.Session, chatID, text string) (*MessageResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.BadRequest("Message text is required", nil)
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, errors.BadRequest("Message text is too long", nil)
	}

	conversation, err := uc.participantChat(ctx, session, chatID)
	if err != nil {
		return nil, err
	}

	if err := uc.allow(session.UserID, ratelimit.ActionSendMessage, "Rate limit exceeded. Please wait before sending another message"); err != nil {
		return nil, err
	}

	senderName := session.DisplayName
	if senderName == "" {
		senderName = conversation.ParticipantNames[session.UserID]
	}

	message := &entity.Message{
		ChatID:     chatID,
		SenderID:   session.UserID,
		SenderName: senderName,
		Text:       text,
	}
	update := entity.SummaryUpdate{
		LastMessage:       text,
		LastMessageSender: session.UserID,
	}
	if err := uc.unread.Increment(&update, conversation.OtherParticipant(session.UserID)); err != nil {
		logger.Error("SendMessage: chat %s has no recipient for %s: %v", chatID, session.UserID, err)
		return nil, err
	}

	resp := &MessageResponse{Message: message, IsMine: true}

	if uc.atomic != nil {
		if err := uc.atomic.AppendMessageWithSummary(ctx, message, update); err != nil {
			return nil, err
		}
		return resp, nil
	}

	if err := uc.chatRepo.AppendMessage(ctx, message); err != nil {
		logger.Error("SendMessage: append to chat %s failed: %v", chatID, err)
		return nil, err
	}

	if err := uc.chatRepo.UpdateSummary(ctx, chatID, update); err != nil {
		logger.Warn("SendMessage: message %s stored but summary of chat %s not updated: %v", message.ID, chatID, err)
		resp.SummaryStale = true
	}

	return resp, nil
}

func (uc *ChatUseCase) GetMessages(ctx context.Context, session *entity.Session, chatID string, limit, offset int) ([]*MessageResponse, int, error) {
	if _, err := uc.participantChat(ctx, session, chatID); err != nil {
		return nil, 0, err
	}

	messages, err := uc.chatRepo.ListMessages(ctx, chatID)
	if err != nil {
		return nil, 0, err
	}

	start, end := utils.Window(len(messages), limit, offset)
	return newMessageResponses(messages[start:end], session.UserID), len(messages), nil
}

// SubscribeMessages pushes the full ordered message list to fn on the first
// snapshot and after every change, until the subscription is cancelled.
func (uc *ChatUseCase) SubscribeMessages(ctx context.Context, session *entity.Session, chatID string, fn func([]*MessageResponse)) (repository.Subscription, error) {
	if _, err := uc.participantChat(ctx, session, chatID); err != nil {
		return nil, err
	}

	viewer := session.UserID
	return uc.chatRepo.WatchMessages(ctx, chatID, func(messages []*entity.Message) {
		fn(newMessageResponses(messages, viewer))
	})
}

func (uc *ChatUseCase) ListConversations(ctx context.Context, session *entity.Session, limit, offset int) ([]*ChatResponse, int, error) {
	conversations, err := uc.chatRepo.ListByParticipant(ctx, session.UserID)
	if err != nil {
		return nil, 0, err
	}

	start, end := utils.Window(len(conversations), limit, offset)
	out := make([]*ChatResponse, 0, end-start)
	for _, c := range conversations[start:end] {
		out = append(out, newChatResponse(c, session.UserID))
	}
	return out, len(conversations), nil
}

// SubscribeConversations pushes the user's conversations, most recently
// active first.
func (uc *ChatUseCase) SubscribeConversations(ctx context.Context, session *entity.Session, fn func([]*ChatResponse)) (repository.Subscription, error) {
	if err := validateUserID(session.UserID); err != nil {
		return nil, err
	}

	viewer := session.UserID
	return uc.chatRepo.WatchConversations(ctx, viewer, func(conversations []*entity.Conversation) {
		out := make([]*ChatResponse, 0, len(conversations))
		for _, c := range conversations {
			out = append(out, newChatResponse(c, viewer))
		}
		fn(out)
	})
}

// MarkAsRead clears the session user's unread counter. The other
// participant's counter is left alone.
func (uc *ChatUseCase) MarkAsRead(ctx context.Context, session *entity.Session, chatID string) error {
	if _, err := uc.participantChat(ctx, session, chatID); err != nil {
		return err
	}
	return uc.unread.Reset(ctx, chatID, session.UserID)
}
