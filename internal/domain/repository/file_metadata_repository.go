package repository

import (
	"context"

	"marketchat/internal/domain/entity"
)

type FileMetadataRepository interface {
	Create(ctx context.Context, metadata *entity.FileMetadata) error
	// GetByUploader returns the user's uploads, newest first, and the total.
	GetByUploader(ctx context.Context, userID string, limit, offset int) ([]*entity.FileMetadata, int64, error)
}
