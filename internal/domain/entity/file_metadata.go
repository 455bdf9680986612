package entity

import (
	"time"
)

// FileMetadata records an image a user uploaded, typically later used as a
// profile photo or listing image.
type FileMetadata struct {
	ID         string    `json:"id" firestore:"id"`
	URL        string    `json:"url" firestore:"url"`
	UploadedBy string    `json:"uploaded_by" firestore:"uploadedBy"`
	FileType   string    `json:"file_type" firestore:"fileType"`
	FileSize   int64     `json:"file_size" firestore:"fileSize"`
	CreatedAt  time.Time `json:"created_at" firestore:"createdAt,serverTimestamp"`
}
