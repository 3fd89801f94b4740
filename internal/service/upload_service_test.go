package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"quill/internal/config"
	"quill/internal/models"
	"quill/internal/storage"
	"quill/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var uploadNamePattern = regexp.MustCompile(`^1700000000000-[0-9a-z]+\.(jpg|png|gif|webp)$`)

func newUploadService(t *testing.T, maxBytes int64) (*UploadService, string) {
	t.Helper()
	dir := t.TempDir()
	svc := NewUploadService(storage.NewLocal(dir, "/uploads"), &config.Config{UploadMaxBytes: maxBytes})
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc, dir
}

func TestUploadService_AcceptsImages(t *testing.T) {
	tests := []struct {
		contentType string
		body        []byte
		ext         string
	}{
		{"image/png", testutil.TinyPNG(t, 4, 4), ".png"},
		{"image/jpeg", testutil.TinyJPEG(t, 4, 4), ".jpg"},
		{"image/gif", testutil.TinyGIF(t, 4, 4), ".gif"},
		{"image/webp", testutil.TinyWebP(t, 16, 16), ".webp"},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			svc, dir := newUploadService(t, 0)

			res, err := svc.Upload(context.Background(), UploadInput{
				ContentType: tt.contentType,
				Body:        bytes.NewReader(tt.body),
				BaseURL:     "https://quill.example.com",
			})
			require.NoError(t, err)
			assert.Regexp(t, uploadNamePattern, res.Filename)
			assert.Equal(t, tt.ext, filepath.Ext(res.Filename))
			assert.Equal(t, "https://quill.example.com/uploads/"+res.Filename, res.URL)

			stored, err := os.ReadFile(filepath.Join(dir, res.Filename))
			require.NoError(t, err)
			assert.Equal(t, tt.body, stored)
		})
	}
}

func TestUploadService_Rejects(t *testing.T) {
	png := testutil.TinyPNG(t, 4, 4)

	tests := []struct {
		name        string
		contentType string
		body        []byte
		maxBytes    int64
		code        string
	}{
		{"unsupported type", "application/pdf", png, 0, models.CodeValidation},
		{"malformed type", ";;", png, 0, models.CodeValidation},
		{"type mismatch", "image/gif", png, 0, models.CodeValidation},
		{"not an image", "image/jpeg", []byte("definitely not a jpeg"), 0, models.CodeValidation},
		{"empty", "image/png", nil, 0, models.CodeValidation},
		{"too large", "image/png", png, int64(len(png) - 1), models.CodePayloadTooBig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, dir := newUploadService(t, tt.maxBytes)
			_, err := svc.Upload(context.Background(), UploadInput{
				ContentType: tt.contentType,
				Body:        bytes.NewReader(tt.body),
				BaseURL:     "http://localhost",
			})
			assertCode(t, err, tt.code)

			entries, _ := os.ReadDir(dir)
			assert.Empty(t, entries)
		})
	}
}

type failingStore struct{}

func (failingStore) Put(context.Context, storage.Object, string) (string, error) {
	return "", errors.New("bucket unavailable")
}

func TestUploadService_StoreFailure(t *testing.T) {
	svc := NewUploadService(failingStore{}, nil)
	_, err := svc.Upload(context.Background(), UploadInput{
		ContentType: "image/png",
		Body:        bytes.NewReader(testutil.TinyPNG(t, 2, 2)),
	})
	assertCode(t, err, models.CodeInternal)
	assert.Equal(t, int64(DefaultUploadMaxBytes), svc.maxBytes)
}
