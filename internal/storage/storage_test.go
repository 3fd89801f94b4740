package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quill/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	storage_go "github.com/supabase-community/storage-go"
)

func TestLocal_Put(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "public", "uploads")
	store := NewLocal(dir, "uploads/")

	url, err := store.Put(context.Background(), Object{Name: "1-abc.png", Body: strings.NewReader("png")}, "https://quill.test/")
	require.NoError(t, err)
	assert.Equal(t, "https://quill.test/uploads/1-abc.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "1-abc.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	_, err = store.Put(context.Background(), Object{Name: "1-abc.png", Body: strings.NewReader("x")}, "")
	assert.Error(t, err, "existing files are never overwritten")

	_, err = store.Put(context.Background(), Object{Name: "../escape.png", Body: strings.NewReader("x")}, "")
	assert.Error(t, err)
}

type fakeBucket struct {
	uploaded    map[string]string
	contentType string
	failWith    error
}

func (f *fakeBucket) UploadFile(bucketID, path string, data io.Reader, opts ...storage_go.FileOptions) (storage_go.FileUploadResponse, error) {
	if f.failWith != nil {
		return storage_go.FileUploadResponse{}, f.failWith
	}
	body, _ := io.ReadAll(data)
	f.uploaded[bucketID+"/"+path] = string(body)
	if len(opts) > 0 && opts[0].ContentType != nil {
		f.contentType = *opts[0].ContentType
	}
	return storage_go.FileUploadResponse{}, nil
}

func (f *fakeBucket) GetPublicUrl(bucketID, path string, _ ...storage_go.UrlOptions) storage_go.SignedUrlResponse {
	return storage_go.SignedUrlResponse{SignedURL: "https://proj.supabase.co/storage/v1/object/public/" + bucketID + "/" + path}
}

func TestSupabase_Put(t *testing.T) {
	bucket := &fakeBucket{uploaded: map[string]string{}}
	store := &Supabase{api: bucket, bucket: "images"}

	url, err := store.Put(context.Background(), Object{Name: "1-abc.webp", ContentType: "image/webp", Body: strings.NewReader("webp")}, "ignored")
	require.NoError(t, err)
	assert.Equal(t, "https://proj.supabase.co/storage/v1/object/public/images/1-abc.webp", url)
	assert.Equal(t, "webp", bucket.uploaded["images/1-abc.webp"])
	assert.Equal(t, "image/webp", bucket.contentType)

	bucket.failWith = errors.New("403")
	_, err = store.Put(context.Background(), Object{Name: "2.png", Body: strings.NewReader("x")}, "")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	store, err := New(&config.Config{UploadDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, store)

	_, err = New(&config.Config{StorageDriver: "supabase"})
	assert.Error(t, err)

	store, err = New(&config.Config{StorageDriver: "supabase", SupabaseURL: "https://proj.supabase.co", SupabaseKey: "k", SupabaseBucket: "images"})
	require.NoError(t, err)
	assert.IsType(t, &Supabase{}, store)

	_, err = New(&config.Config{StorageDriver: "s3"})
	assert.Error(t, err)
}
