package entity

import (
	"time"
)

// Listing is a marketplace post. Chat only reads the fields it snapshots
// into a conversation.
type Listing struct {
	ID        string    `json:"id" firestore:"-"`
	UserID    string    `json:"user_id" firestore:"userId"`
	Title     string    `json:"title" firestore:"title"`
	Category  string    `json:"category" firestore:"category"`
	Price     float64   `json:"price" firestore:"price"`
	Images    []string  `json:"images" firestore:"images"`
	Status    string    `json:"status" firestore:"status"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
}

// Image is the cover image shown next to a conversation.
func (l *Listing) Image() string {
	if len(l.Images) == 0 {
		return ""
	}
	return l.Images[0]
}
