package handler

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/middleware"
	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/internal/domain/service"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
	"marketchat/pkg/response"
	"marketchat/pkg/utils"
)

const maxImageSize = 5 * 1024 * 1024

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

type MediaHandler struct {
	store            service.ImageStore
	fileMetadataRepo repository.FileMetadataRepository
}

var mediaHandler *MediaHandler

// NewMediaHandler accepts a nil store; uploads then answer 404.
func NewMediaHandler(store service.ImageStore, fileMetadataRepo repository.FileMetadataRepository) *MediaHandler {
	return &MediaHandler{
		store:            store,
		fileMetadataRepo: fileMetadataRepo,
	}
}

func SetupMediaHandler(store service.ImageStore, fileMetadataRepo repository.FileMetadataRepository) {
	mediaHandler = NewMediaHandler(store, fileMetadataRepo)
}

func GetMediaHandler() *MediaHandler {
	return mediaHandler
}

func (h *MediaHandler) UploadImage(c echo.Context) error {
	if h.store == nil {
		return response.Error(c, errors.NotFound("Image hosting", nil))
	}

	file, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, errors.BadRequest("Missing or invalid file", err))
	}

	if file.Size > maxImageSize {
		logger.Warn("Image too large: %d bytes (max: %d)", file.Size, maxImageSize)
		return response.Error(c, errors.BadRequest(fmt.Sprintf("File size exceeds maximum allowed (%dMB)", maxImageSize/(1024*1024)), nil))
	}

	src, err := file.Open()
	if err != nil {
		return response.Error(c, errors.BadRequest("Failed to read file", err))
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxImageSize+1))
	if err != nil {
		return response.Error(c, errors.BadRequest("Failed to read file", err))
	}
	if len(data) > maxImageSize {
		return response.Error(c, errors.BadRequest(fmt.Sprintf("File size exceeds maximum allowed (%dMB)", maxImageSize/(1024*1024)), nil))
	}

	// The declared Content-Type is ignored; only the bytes count.
	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedImageTypes...) {
		logger.Warn("Rejected upload of type %s", mtype.String())
		return response.Error(c, errors.BadRequest("File type not supported", nil))
	}

	session := middleware.SessionFrom(c)
	folder := "public/chat/" + session.UserID

	url, err := h.store.UploadPublic(c.Request().Context(), bytes.NewReader(data), mtype.String(), folder, mtype.Extension())
	if err != nil {
		logger.Error("Image upload for user %s failed: %v", session.UserID, err)
		return response.Error(c, errors.Unavailable("Failed to upload image", err))
	}

	metadata := &entity.FileMetadata{
		URL:        url,
		UploadedBy: session.UserID,
		FileType:   mtype.String(),
		FileSize:   int64(len(data)),
	}
	// The object is already public; a lost record only hides it from the list.
	if err := h.fileMetadataRepo.Create(c.Request().Context(), metadata); err != nil {
		logger.Warn("Image %s uploaded but metadata not saved: %v", url, err)
	}

	return response.Created(c, metadata)
}

// ListImages returns the caller's uploads, newest first.
func (h *MediaHandler) ListImages(c echo.Context) error {
	if h.store == nil {
		return response.Error(c, errors.NotFound("Image hosting", nil))
	}

	pagination := utils.GetPaginationParams(c, 20)
	session := middleware.SessionFrom(c)

	files, total, err := h.fileMetadataRepo.GetByUploader(c.Request().Context(), session.UserID, pagination.Limit, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessPaginated(c, files, total, pagination.Limit, pagination.Offset)
}
