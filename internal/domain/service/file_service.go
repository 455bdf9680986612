package service

import (
	"context"
	"io"
)

// ImageStore hosts uploaded images and returns their public URL. ext
// carries the leading dot.
type ImageStore interface {
	UploadPublic(ctx context.Context, file io.Reader, contentType, folder, ext string) (string, error)
}
