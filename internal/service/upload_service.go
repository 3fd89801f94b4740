package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"math/rand/v2"
	"mime"
	"strconv"
	"time"

	"quill/internal/config"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/storage"

	_ "golang.org/x/image/webp" // Register WebP decoder
)

const DefaultUploadMaxBytes = 5 * 1024 * 1024

// uploadTypes maps accepted MIME types to the decoder name and file extension.
var uploadTypes = map[string]struct{ format, ext string }{
	"image/jpeg": {"jpeg", ".jpg"},
	"image/png":  {"png", ".png"},
	"image/gif":  {"gif", ".gif"},
	"image/webp": {"webp", ".webp"},
}

type UploadInput struct {
	ContentType string
	Body        io.Reader
	// BaseURL is scheme://host of the request, used for locally served files.
	BaseURL string
}

type UploadResult struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

type UploadService struct {
	store    storage.Store
	maxBytes int64
	now      func() time.Time
}

func NewUploadService(store storage.Store, cfg *config.Config) *UploadService {
	maxBytes := int64(DefaultUploadMaxBytes)
	if cfg != nil && cfg.UploadMaxBytes > 0 {
		maxBytes = cfg.UploadMaxBytes
	}
	return &UploadService{store: store, maxBytes: maxBytes, now: time.Now}
}

// Upload checks the declared type, the size and the actual content of an
// image before storing it under a fresh name.
func (s *UploadService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if in.Body == nil {
		return nil, models.NewValidationError("No file uploaded")
	}
	mediaType, _, err := mime.ParseMediaType(in.ContentType)
	if err != nil {
		return nil, models.NewValidationError("Unsupported file type, only JPEG, PNG, GIF and WebP are allowed")
	}
	kind, ok := uploadTypes[mediaType]
	if !ok {
		return nil, models.NewValidationError("Unsupported file type, only JPEG, PNG, GIF and WebP are allowed")
	}

	content, err := io.ReadAll(io.LimitReader(in.Body, s.maxBytes+1))
	if err != nil {
		return nil, models.NewInternalError(fmt.Errorf("read upload: %w", err))
	}
	if int64(len(content)) > s.maxBytes {
		return nil, &models.AppError{
			Code:    models.CodePayloadTooBig,
			Message: fmt.Sprintf("File too large (max %dMB)", s.maxBytes/(1024*1024)),
		}
	}
	if len(content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if format != kind.format {
		return nil, models.NewValidationError("Image content does not match its type")
	}

	name := s.fileName(kind.ext)
	url, err := s.store.Put(ctx, storage.Object{
		Name:        name,
		ContentType: mediaType,
		Body:        bytes.NewReader(content),
	}, in.BaseURL)
	if err != nil {
		return nil, models.NewInternalMessage("File upload failed", err)
	}

	observability.UploadBytes.Observe(float64(len(content)))
	return &UploadResult{URL: url, Filename: name}, nil
}

// fileName is "<unix millis>-<random base36><ext>".
func (s *UploadService) fileName(ext string) string {
	return strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + strconv.FormatUint(rand.Uint64(), 36) + ext
}
