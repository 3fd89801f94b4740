package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/storage"
	"quill/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "server-test-secret-0123456789abcdef0123"

// testServer is a Server on a throwaway SQLite file with a scripted
// language model and local upload storage.
type testServer struct {
	srv       *Server
	app       *fiber.App
	llm       *testutil.FakeCompleter
	uploadDir string
}

func newTestServer(t *testing.T, flags string) *testServer {
	t.Helper()
	cache.SetClient(nil)

	dir := t.TempDir()
	cfg := &config.Config{
		Env:              "test",
		DBDriver:         "sqlite",
		DBSQLitePath:     filepath.Join(dir, "server.db"),
		JWTSecret:        testJWTSecret,
		StorageDriver:    "local",
		UploadDir:        filepath.Join(dir, "uploads"),
		UploadMaxBytes:   1 << 20,
		FeatureFlags:     flags,
		RateLimitEnabled: false,
	}
	db, err := database.Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	store := storage.NewLocal(cfg.UploadDir, "/uploads")
	llm := &testutil.FakeCompleter{Replies: map[string]string{}, Err: errors.New("no reply configured")}
	srv, err := NewServerWithDeps(cfg, Deps{DB: db, LLM: llm, Store: store})
	require.NoError(t, err)

	return &testServer{srv: srv, app: srv.App(), llm: llm, uploadDir: cfg.UploadDir}
}

// token signs an HS256 session token for the given identity provider id.
func token(t *testing.T, clerkID string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": clerkID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

// do sends a JSON request and decodes the JSON response body.
func (ts *testServer) do(t *testing.T, method, path, bearer string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return ts.send(t, req)
}

func (ts *testServer) send(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// sync registers clerkID as username and returns the new user's id.
func (ts *testServer) sync(t *testing.T, clerkID, username string) string {
	t.Helper()
	status, body := ts.do(t, http.MethodPost, "/api/users/sync", token(t, clerkID), map[string]any{
		"username": username,
		"avatar":   "https://cdn.example.com/" + username + ".png",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body["user"].(map[string]any)["id"].(string)
}

// createPost publishes a post as clerkID and returns its id.
func (ts *testServer) createPost(t *testing.T, clerkID, title string) string {
	t.Helper()
	status, body := ts.do(t, http.MethodPost, "/api/posts", token(t, clerkID), map[string]any{
		"title":   title,
		"content": title + " content",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body["post"].(map[string]any)["id"].(string)
}

func stringsReader(s string) io.Reader {
	return strings.NewReader(s)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}
