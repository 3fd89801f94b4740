// Package storage persists uploaded files and resolves their public URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"quill/internal/config"

	storage_go "github.com/supabase-community/storage-go"
)

// Object describes a file to store.
type Object struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Store writes objects and returns where they can be fetched.
type Store interface {
	// Put stores obj. baseURL is the scheme://host of the current request and
	// is used by stores that serve files themselves.
	Put(ctx context.Context, obj Object, baseURL string) (string, error)
}

// New picks the store selected by STORAGE_DRIVER.
func New(cfg *config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case "", "local":
		return NewLocal(cfg.UploadDir, "/uploads"), nil
	case "supabase":
		return NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// Local writes files below Dir and serves them under URLPrefix.
type Local struct {
	Dir       string
	URLPrefix string
}

func NewLocal(dir, urlPrefix string) *Local {
	return &Local{Dir: dir, URLPrefix: "/" + strings.Trim(urlPrefix, "/")}
}

func (l *Local) Put(ctx context.Context, obj Object, baseURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if obj.Name != filepath.Base(obj.Name) || strings.HasPrefix(obj.Name, ".") {
		return "", fmt.Errorf("invalid object name %q", obj.Name)
	}
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(l.Dir, obj.Name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", obj.Name, err)
	}
	if _, err := io.Copy(f, obj.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write %s: %w", obj.Name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close %s: %w", obj.Name, err)
	}

	return strings.TrimRight(baseURL, "/") + l.URLPrefix + "/" + obj.Name, nil
}

// bucketAPI is the part of the Supabase storage client used here.
type bucketAPI interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	GetPublicUrl(bucketID, filePath string, urlOptions ...storage_go.UrlOptions) storage_go.SignedUrlResponse
}

// Supabase stores files in a Supabase Storage bucket.
type Supabase struct {
	api    bucketAPI
	bucket string
}

// NewSupabase builds a Supabase store from the project URL and service key.
func NewSupabase(projectURL, key, bucket string) (*Supabase, error) {
	if projectURL == "" || key == "" || bucket == "" {
		return nil, fmt.Errorf("missing SUPABASE_URL, SUPABASE_KEY, or SUPABASE_BUCKET")
	}
	client := storage_go.NewClient(strings.TrimRight(projectURL, "/")+"/storage/v1", key, nil)
	return &Supabase{api: client, bucket: bucket}, nil
}

func (s *Supabase) Put(ctx context.Context, obj Object, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	contentType := obj.ContentType
	if _, err := s.api.UploadFile(s.bucket, obj.Name, obj.Body, storage_go.FileOptions{ContentType: &contentType}); err != nil {
		return "", fmt.Errorf("upload %s: %w", obj.Name, err)
	}
	return s.api.GetPublicUrl(s.bucket, obj.Name).SignedURL, nil
}
