package entity

import (
	"sort"
	"strings"
	"time"
)

// ConversationIDSeparator joins the two sorted participant ids.
const ConversationIDSeparator = "_"

type Conversation struct {
	ID                string            `json:"id" firestore:"id"`
	Participants      []string          `json:"participants" firestore:"participants"`
	ParticipantNames  map[string]string `json:"participant_names" firestore:"participantNames"`
	ParticipantPhotos map[string]string `json:"participant_photos" firestore:"participantPhotos"`
	LastMessage       string            `json:"last_message" firestore:"lastMessage"`
	LastMessageTime   time.Time         `json:"last_message_time" firestore:"lastMessageTime,serverTimestamp"`
	LastMessageSender string            `json:"last_message_sender" firestore:"lastMessageSender"`
	UnreadCount       map[string]int    `json:"unread_count" firestore:"unreadCount"`
	ListingID         string            `json:"listing_id,omitempty" firestore:"listingId,omitempty"`
	ListingTitle      string            `json:"listing_title,omitempty" firestore:"listingTitle,omitempty"`
	ListingImage      string            `json:"listing_image,omitempty" firestore:"listingImage,omitempty"`
	CreatedAt         time.Time         `json:"created_at" firestore:"createdAt,serverTimestamp"`
}

// SummaryUpdate is the denormalised projection written on every send.
// IncrementUnreadFor names the participant whose counter goes up by one.
type SummaryUpdate struct {
	LastMessage        string
	LastMessageSender  string
	IncrementUnreadFor string
}

// ConversationID derives the canonical id for an unordered pair of users.
func ConversationID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ConversationIDSeparator)
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not userID, or "" when
// userID is not part of the conversation.
func (c *Conversation) OtherParticipant(userID string) string {
	if !c.HasParticipant(userID) {
		return ""
	}
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

func (c *Conversation) UnreadFor(userID string) int {
	if c.UnreadCount == nil {
		return 0
	}
	return c.UnreadCount[userID]
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (c *Conversation) Clone() *Conversation {
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	out.ParticipantNames = cloneStrings(c.ParticipantNames)
	out.ParticipantPhotos = cloneStrings(c.ParticipantPhotos)
	out.UnreadCount = make(map[string]int, len(c.UnreadCount))
	for k, v := range c.UnreadCount {
		out.UnreadCount[k] = v
	}
	return &out
}

func cloneStrings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
