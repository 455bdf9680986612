package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketchat/internal/domain/entity"
	"marketchat/pkg/utils"
)

type MemoryFileMetadataRepository struct {
	mu    sync.RWMutex
	files []*entity.FileMetadata
}

func NewMemoryFileMetadataRepository() *MemoryFileMetadataRepository {
	return &MemoryFileMetadataRepository{}
}

func (r *MemoryFileMetadataRepository) Create(ctx context.Context, metadata *entity.FileMetadata) error {
	metadata.ID = uuid.New().String()
	metadata.CreatedAt = time.Now().UTC()

	cp := *metadata
	r.mu.Lock()
	r.files = append(r.files, &cp)
	r.mu.Unlock()
	return nil
}

func (r *MemoryFileMetadataRepository) GetByUploader(ctx context.Context, userID string, limit, offset int) ([]*entity.FileMetadata, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Newest first: walk the append-ordered slice backwards.
	mine := make([]*entity.FileMetadata, 0)
	for i := len(r.files) - 1; i >= 0; i-- {
		if r.files[i].UploadedBy == userID {
			cp := *r.files[i]
			mine = append(mine, &cp)
		}
	}

	start, end := utils.Window(len(mine), limit, offset)
	return mine[start:end], int64(len(mine)), nil
}
