package entity

import (
	"time"
)

// User is the read-only profile snapshot kept under users/{uid}.
type User struct {
	ID        string    `json:"id" firestore:"uid"`
	Name      string    `json:"name" firestore:"name"`
	Email     string    `json:"email" firestore:"email"`
	PhotoURL  string    `json:"photo_url,omitempty" firestore:"photoURL,omitempty"`
	Role      string    `json:"role,omitempty" firestore:"role,omitempty"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
}
