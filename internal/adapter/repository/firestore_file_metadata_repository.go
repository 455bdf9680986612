package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

const fileMetadataCollection = "file_metadata"

type firestoreFileMetadataRepository struct {
	client *firestore.Client
}

func NewFirestoreFileMetadataRepository(client *firestore.Client) repository.FileMetadataRepository {
	return &firestoreFileMetadataRepository{
		client: client,
	}
}

func (r *firestoreFileMetadataRepository) Create(ctx context.Context, metadata *entity.FileMetadata) error {
	ref := r.client.Collection(fileMetadataCollection).NewDoc()
	metadata.ID = ref.ID

	wr, err := ref.Create(ctx, metadata)
	if err != nil {
		return errors.FromStore("Failed to create file metadata", err)
	}
	metadata.CreatedAt = wr.UpdateTime
	return nil
}

func (r *firestoreFileMetadataRepository) GetByUploader(ctx context.Context, userID string, limit, offset int) ([]*entity.FileMetadata, int64, error) {
	base := r.client.Collection(fileMetadataCollection).Where("uploadedBy", "==", userID)

	countDocs, err := base.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, errors.FromStore("Failed to count files", err)
	}
	total := int64(len(countDocs))

	query := base.OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	metadataList := make([]*entity.FileMetadata, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, errors.FromStore("Failed to iterate file metadata", err)
		}

		var metadata entity.FileMetadata
		if err := doc.DataTo(&metadata); err != nil {
			logger.Error("Failed to parse file metadata %s: %v", doc.Ref.ID, err)
			continue
		}
		metadata.ID = doc.Ref.ID
		metadataList = append(metadataList, &metadata)
	}

	return metadataList, total, nil
}
