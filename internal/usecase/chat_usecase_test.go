package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/internal/adapter/repository"
	"marketchat/internal/domain/entity"
	"marketchat/internal/infrastructure/ratelimit"
	"marketchat/pkg/errors"
)

type fixture struct {
	uc       *ChatUseCase
	chats    *repository.MemoryChatRepository
	users    *repository.MemoryUserRepository
	listings *repository.MemoryListingRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		chats:    repository.NewMemoryChatRepository(),
		users:    repository.NewMemoryUserRepository(),
		listings: repository.NewMemoryListingRepository(),
	}
	for _, u := range []*entity.User{
		{ID: "u1", Name: "Ann", PhotoURL: "https://img/u1.png"},
		{ID: "u2", Name: "Ben", PhotoURL: "https://img/u2.png"},
		{ID: "u3", Name: "Cat"},
	} {
		f.users.Put(u)
	}
	f.listings.Put(&entity.Listing{ID: "l1", Title: "Bike", Images: []string{"https://img/bike.png", "https://img/bike2.png"}})
	f.uc = NewChatUseCase(f.chats, f.users, f.listings, nil, false)
	return f
}

func session(uid, name string) *entity.Session {
	return &entity.Session{UserID: uid, DisplayName: name}
}

func (f *fixture) resolve(t *testing.T, a, b string) *ChatResponse {
	t.Helper()
	resp, err := f.uc.ResolveConversation(context.Background(), session(a, ""), b, "")
	require.NoError(t, err)
	return resp
}

func (f *fixture) stored(t *testing.T, id string) *entity.Conversation {
	t.Helper()
	c, err := f.chats.GetByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

func TestResolveConversationIsSymmetric(t *testing.T) {
	f := newFixture(t)

	ab := f.resolve(t, "u1", "u2")
	ba := f.resolve(t, "u2", "u1")

	assert.Equal(t, ab.ID, ba.ID)
	assert.Equal(t, "u1_u2", ab.ID)
	assert.True(t, ab.Created)
	assert.False(t, ba.Created)
	assert.Equal(t, "u2", ab.OtherUserID)
	assert.Equal(t, "u1", ba.OtherUserID)
	assert.Equal(t, "Ann", ba.OtherUserName)
}

func TestResolveConversationCreatesFreshRecord(t *testing.T) {
	f := newFixture(t)

	resp := f.resolve(t, "u1", "u2")

	c := f.stored(t, resp.ID)
	assert.ElementsMatch(t, []string{"u1", "u2"}, c.Participants)
	assert.Equal(t, map[string]int{"u1": 0, "u2": 0}, c.UnreadCount)
	assert.Empty(t, c.LastMessage)
	assert.Empty(t, c.LastMessageSender)
	assert.Equal(t, map[string]string{"u1": "Ann", "u2": "Ben"}, c.ParticipantNames)
	assert.Equal(t, "https://img/u1.png", c.ParticipantPhotos["u1"])
	assert.False(t, c.CreatedAt.IsZero())
}

func TestResolveConversationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.ResolveConversation(ctx, session("u1", "Ann"), "u2", "")
	require.NoError(t, err)

	f.users.Put(&entity.User{ID: "u2", Name: "Benjamin"})
	again, err := f.uc.ResolveConversation(ctx, session("u1", "Annie"), "u2", "l1")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, "Ben", again.OtherUserName)
	assert.Empty(t, again.ListingID)

	all, err := f.chats.ListByParticipant(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, "Ann", all[0].ParticipantNames["u1"])
}

func TestResolveConversationWithListing(t *testing.T) {
	f := newFixture(t)

	resp, err := f.uc.ResolveConversation(context.Background(), session("u1", "Ann"), "u2", "l1")
	require.NoError(t, err)

	assert.Equal(t, "l1", resp.ListingID)
	assert.Equal(t, "Bike", resp.ListingTitle)
	assert.Equal(t, "https://img/bike.png", resp.ListingImage)
}

func TestResolveConversationUsesSessionMetadata(t *testing.T) {
	f := newFixture(t)
	s := &entity.Session{UserID: "u1", DisplayName: "Ann S.", PhotoURL: "https://img/session.png"}

	resp, err := f.uc.ResolveConversation(context.Background(), s, "u2", "")
	require.NoError(t, err)

	assert.Equal(t, "Ann S.", resp.ParticipantNames["u1"])
	assert.Equal(t, "https://img/session.png", resp.ParticipantPhotos["u1"])
}

func TestResolveConversationFillsMissingPhotoFromProfile(t *testing.T) {
	f := newFixture(t)

	resp, err := f.uc.ResolveConversation(context.Background(), session("u1", "Ann S."), "u2", "")
	require.NoError(t, err)

	assert.Equal(t, "Ann S.", resp.ParticipantNames["u1"])
	assert.Equal(t, "https://img/u1.png", resp.ParticipantPhotos["u1"])
}

func TestResolveConversationRejectsBeforeWriting(t *testing.T) {
	tests := []struct {
		name    string
		self    string
		other   string
		listing string
		code    string
	}{
		{"missing other user", "u1", "", "", "BAD_REQUEST"},
		{"blank other user", "u1", "   ", "", "BAD_REQUEST"},
		{"self chat", "u1", "u1", "", "BAD_REQUEST"},
		{"separator in id", "u1", "u_2", "", "BAD_REQUEST"},
		{"unknown user", "u1", "ghost", "", "NOT_FOUND"},
		{"unknown listing", "u1", "u2", "nope", "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.uc.ResolveConversation(context.Background(), session(tt.self, "Ann"), tt.other, tt.listing)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)

			all, err := f.chats.ListByParticipant(context.Background(), tt.self)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestSendMessageHelloScenario(t *testing.T) {
	f := newFixture(t)
	chat := f.resolve(t, "u1", "u2")

	msg, err := f.uc.SendMessage(context.Background(), session("u1", "Ann"), chat.ID, "Hello")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "Ann", msg.SenderName)
	assert.False(t, msg.Read)
	assert.True(t, msg.IsMine)
	assert.False(t, msg.SummaryStale)

	c := f.stored(t, chat.ID)
	assert.Equal(t, "Hello", c.LastMessage)
	assert.Equal(t, "u1", c.LastMessageSender)
	assert.Equal(t, 1, c.UnreadFor("u2"))
	assert.Equal(t, 0, c.UnreadFor("u1"))
	assert.False(t, c.LastMessageTime.Before(msg.CreatedAt))
}

func TestReadThenSendScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.resolve(t, "u1", "u2")

	for i := 0; i < 3; i++ {
		_, err := f.uc.SendMessage(ctx, session("u1", "Ann"), chat.ID, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.stored(t, chat.ID).UnreadFor("u2"))

	require.NoError(t, f.uc.MarkAsRead(ctx, session("u2", "Ben"), chat.ID))
	c := f.stored(t, chat.ID)
	assert.Equal(t, 0, c.UnreadFor("u2"))
	assert.Equal(t, 0, c.UnreadFor("u1"))

	_, err := f.uc.SendMessage(ctx, session("u1", "Ann"), chat.ID, "again")
	require.NoError(t, err)
	c = f.stored(t, chat.ID)
	assert.Equal(t, 1, c.UnreadFor("u2"))
	assert.Equal(t, 0, c.UnreadFor("u1"))
}

func TestSendMessageFallsBackToStoredName(t *testing.T) {
	f := newFixture(t)
	chat := f.resolve(t, "u1", "u2")

	msg, err := f.uc.SendMessage(context.Background(), session("u2", ""), chat.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "Ben", msg.SenderName)
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.resolve(t, "u1", "u2")

	t.Run("blank text", func(t *testing.T) {
		_, err := f.uc.SendMessage(ctx, session("u1", "Ann"), chat.ID, " \n\t ")
		assert.True(t, errors.Is(err, "BAD_REQUEST"))
	})

	t.Run("too long", func(t *testing.T) {
		long := make([]rune, MaxMessageLength+1)
		for i := range long {
			long[i] = 'é'
		}
		_, err := f.uc.SendMessage(ctx, session("u1", "Ann"), chat.ID, string(long))
		assert.True(t, errors.Is(err, "BAD_REQUEST"))
	})

	t.Run("unknown chat", func(t *testing.T) {
		_, err := f.uc.SendMessage(ctx, session("u1", "Ann"), "u1_u9", "hi")
		assert.True(t, errors.Is(err, "NOT_FOUND"))
	})

	t.Run("not a participant", func(t *testing.T) {
		_, err := f.uc.SendMessage(ctx, session("u3", "Cat"), chat.ID, "hi")
		assert.True(t, errors.Is(err, "FORBIDDEN"))
	})

	msgs, err := f.chats.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, 0, f.stored(t, chat.ID).UnreadFor("u2"))
}

func TestSendMessageKeepsTextAsGiven(t *testing.T) {
	f := newFixture(t)
	chat := f.resolve(t, "u1", "u2")

	msg, err := f.uc.SendMessage(context.Background(), session("u1", "Ann"), chat.ID, "  spaced  ")
	require.NoError(t, err)
	assert.Equal(t, "  spaced  ", msg.Text)
}

// staleSummaryRepo stores messages but fails every summary update.
type staleSummaryRepo struct {
	*repository.MemoryChatRepository
}

func (r staleSummaryRepo) UpdateSummary(ctx context.Context, chatID string, update entity.SummaryUpdate) error {
	return errors.Unavailable("Failed to update chat summary", nil)
}

func TestSendMessageSummaryFailureKeepsMessage(t *testing.T) {
	f := newFixture(t)
	chat := f.resolve(t, "u1", "u2")
	uc := NewChatUseCase(staleSummaryRepo{f.chats}, f.users, f.listings, nil, false)

	msg, err := uc.SendMessage(context.Background(), session("u1", "Ann"), chat.ID, "Hello")
	require.NoError(t, err)
	assert.True(t, msg.SummaryStale)

	msgs, err := f.chats.ListMessages(context.Background(), chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].ID)

	c := f.stored(t, chat.ID)
	assert.Empty(t, c.LastMessage)
	assert.Equal(t, 0, c.UnreadFor("u2"))

	// The next healthy send repairs the summary.
	_, err = f.uc.SendMessage(context.Background(), session("u1", "Ann"), chat.ID, "Again")
	require.NoError(t, err)
	assert.Equal(t, "Again", f.stored(t, chat.ID).LastMessage)
}

func TestSendMessageTransactional(t *testing.T) {
	f := newFixture(t)
	chat := f.resolve(t, "u1", "u2")
	uc := NewChatUseCase(f.chats, f.users, f.listings, nil, true)
	require.NotNil(t, uc.atomic)

	msg, err := uc.SendMessage(context.Background(), session("u2", "Ben"), chat.ID, "Deal")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)

	c := f.stored(t, chat.ID)
	assert.Equal(t, "Deal", c.LastMessage)
	assert.Equal(t, 1, c.UnreadFor("u1"))
	assert.Equal(t, 0, c.UnreadFor("u2"))
}

func TestConcurrentSendsCountEveryMessage(t *testing.T) {
	f := newFixture(t)
	chat := f.resolve(t, "u1", "u2")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.uc.SendMessage(context.Background(), session("u1", "Ann"), chat.ID, fmt.Sprintf("m%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	c := f.stored(t, chat.ID)
	assert.Equal(t, n, c.UnreadFor("u2"))
	assert.Equal(t, 0, c.UnreadFor("u1"))
}

func TestSendMessageRateLimited(t *testing.T) {
	f := newFixture(t)
	chat := f.resolve(t, "u1", "u2")
	uc := NewChatUseCase(f.chats, f.users, f.listings, ratelimit.NewRateLimiter(1, 2), false)

	for i := 0; i < 2; i++ {
		_, err := uc.SendMessage(context.Background(), session("u1", "Ann"), chat.ID, "hi")
		require.NoError(t, err)
	}

	_, err := uc.SendMessage(context.Background(), session("u1", "Ann"), chat.ID, "hi")
	assert.True(t, errors.Is(err, "TOO_MANY_REQUESTS"))

	_, err = uc.SendMessage(context.Background(), session("u2", "Ben"), chat.ID, "hi")
	assert.NoError(t, err)
}

func TestGetMessagesPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.resolve(t, "u1", "u2")
	for i := 0; i < 5; i++ {
		_, err := f.uc.SendMessage(ctx, session("u1", "Ann"), chat.ID, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	page, total, err := f.uc.GetMessages(ctx, session("u2", "Ben"), chat.ID, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "m1", page[0].Text)
	assert.Equal(t, "m2", page[1].Text)
	assert.False(t, page[0].IsMine)

	_, _, err = f.uc.GetMessages(ctx, session("u3", "Cat"), chat.ID, 10, 0)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestListAndGetConversations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	older := f.resolve(t, "u1", "u2")
	newer := f.resolve(t, "u1", "u3")

	_, err := f.uc.SendMessage(ctx, session("u2", "Ben"), older.ID, "bump")
	require.NoError(t, err)

	list, total, err := f.uc.ListConversations(ctx, session("u1", "Ann"), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, older.ID, list[0].ID)
	assert.Equal(t, 1, list[0].Unread)
	assert.Equal(t, newer.ID, list[1].ID)

	got, err := f.uc.GetConversation(ctx, session("u2", "Ben"), older.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.OtherUserID)
	assert.Equal(t, 0, got.Unread)

	_, err = f.uc.GetConversation(ctx, session("u3", "Cat"), older.ID)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestMarkAsReadRequiresParticipant(t *testing.T) {
	f := newFixture(t)
	chat := f.resolve(t, "u1", "u2")

	err := f.uc.MarkAsRead(context.Background(), session("u3", "Cat"), chat.ID)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

// recorder collects snapshots pushed to a subscriber.
type recorder[T any] struct {
	mu    sync.Mutex
	calls [][]T
}

func (r *recorder[T]) fn(items []T) {
	r.mu.Lock()
	r.calls = append(r.calls, items)
	r.mu.Unlock()
}

func (r *recorder[T]) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder[T]) last() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func TestSubscribeMessagesDeliversInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.resolve(t, "u1", "u2")

	rec := &recorder[*MessageResponse]{}
	sub, err := f.uc.SubscribeMessages(ctx, session("u2", "Ben"), chat.ID, rec.fn)
	require.NoError(t, err)
	defer sub.Cancel()

	for i := 0; i < 4; i++ {
		sender := "u1"
		if i%2 == 1 {
			sender = "u2"
		}
		_, err := f.uc.SendMessage(ctx, session(sender, ""), chat.ID, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool { return len(rec.last()) == 4 }, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, snapshot := range rec.calls {
		for i := 1; i < len(snapshot); i++ {
			assert.False(t, snapshot[i].CreatedAt.Before(snapshot[i-1].CreatedAt))
		}
	}
	final := rec.calls[len(rec.calls)-1]
	for i, m := range final {
		assert.Equal(t, fmt.Sprintf("m%d", i), m.Text)
		assert.Equal(t, m.SenderID == "u2", m.IsMine)
	}
}

func TestCancelledSubscriptionReceivesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.resolve(t, "u1", "u2")

	rec := &recorder[*MessageResponse]{}
	sub, err := f.uc.SubscribeMessages(ctx, session("u1", "Ann"), chat.ID, rec.fn)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	sub.Cancel()
	before := rec.count()

	_, err = f.uc.SendMessage(ctx, session("u2", "Ben"), chat.ID, "are you there?")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, rec.count())
}

func TestSubscribeMessagesRequiresParticipant(t *testing.T) {
	f := newFixture(t)
	chat := f.resolve(t, "u1", "u2")

	_, err := f.uc.SubscribeMessages(context.Background(), session("u3", "Cat"), chat.ID, func([]*MessageResponse) {})
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestSubscribeConversationsFollowsSends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := &recorder[*ChatResponse]{}
	sub, err := f.uc.SubscribeConversations(ctx, session("u2", "Ben"), rec.fn)
	require.NoError(t, err)
	defer sub.Cancel()

	chat := f.resolve(t, "u1", "u2")
	_, err = f.uc.SendMessage(ctx, session("u1", "Ann"), chat.ID, "Hello")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		last := rec.last()
		return len(last) == 1 && last[0].LastMessage == "Hello" && last[0].Unread == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "u1", rec.last()[0].OtherUserID)
}
