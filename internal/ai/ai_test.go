package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	for _, name := range []string{PromptTranslateZH, PromptTranslateEN, PromptTags, PromptExpand, PromptRank} {
		require.Contains(t, catalog, name)
	}

	system, user, err := catalog[PromptTags].Render(map[string]any{
		"Title": "Go generics", "Content": "type params", "MaxTags": 3,
	})
	require.NoError(t, err)
	assert.Contains(t, system, "at most 3")
	assert.Contains(t, user, "Title: Go generics")
	assert.Equal(t, float32(0.3), catalog[PromptTranslateZH].Temperature)
	assert.Equal(t, 2000, catalog[PromptTranslateZH].MaxTokens)
}

func TestLoadCatalog_RejectsBrokenTemplates(t *testing.T) {
	_, err := LoadCatalog([]byte("bad:\n  system: hi\n"))
	assert.Error(t, err)

	_, err = LoadCatalog([]byte("bad:\n  user: \"{{.Oops\"\n"))
	assert.Error(t, err)
}

func TestTags(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		title  string
		max    int
		want   []string
		parsed bool
	}{
		{"plain array", `["go", "web"]`, "t", 5, []string{"go", "web"}, true},
		{"fenced", "```json\n[\"go\", \" \", \"Go\", \"api\"]\n```", "t", 5, []string{"go", "api"}, true},
		{"truncated", `["a","b","c","d"]`, "t", 2, []string{"a", "b"}, true},
		{"prose", `Sure! Here are tags: "go", "web"`, "Learning Go today", 5, []string{"Learning"}, false},
		{"object", `{"tags": ["go"]}`, "Hello", 5, []string{"Hello"}, false},
		{"empty array", `[]`, "   ", 5, []string{"post"}, false},
		{"mixed element types", `["golang", 42, "web", null, ""]`, "Hello world", 5, []string{"golang", "web"}, true},
		{"no string elements", `[1, true, {"tag": "go"}]`, "Hello world", 5, []string{"Hello"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, parsed := Tags(tt.reply, tt.title, tt.max)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.parsed, parsed)
			assert.LessOrEqual(t, len(got), tt.max)
		})
	}
}

func TestKeywords(t *testing.T) {
	got, ok := Keywords(`["golang", "go concurrency"]`, "go")
	assert.True(t, ok)
	assert.Equal(t, []string{"go", "golang", "go concurrency"}, got)

	got, ok = Keywords(`["Go", "golang"]`, "go")
	assert.True(t, ok)
	assert.Equal(t, []string{"Go", "golang"}, got)

	got, ok = Keywords(`[7, "golang", null]`, "go")
	assert.True(t, ok)
	assert.Equal(t, []string{"go", "golang"}, got)

	got, ok = Keywords("no idea", " go ")
	assert.False(t, ok)
	assert.Equal(t, []string{"go"}, got)
}

func TestRankingOrder(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	r, err := ParseRanking("```\n" + `{"rankedIds": ["` + c.String() + `", "not-a-uuid", "` + uuid.NewString() + `", "` + a.String() + `"], "summary": "ok"}` + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "ok", r.Summary)
	assert.Equal(t, []uuid.UUID{c, a, b}, r.Order([]uuid.UUID{a, b, c}))

	_, err = ParseRanking("The best match is the first one.")
	assert.Error(t, err)
}

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func fakeLLM(t *testing.T, reply string, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "deepseek-chat",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": reply},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Complete(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	var req chatRequest
	srv := fakeLLM(t, "  你好，世界  ", &req)
	client := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Timeout: 5 * time.Second}, catalog)
	require.True(t, client.Configured())

	reply, err := client.Complete(context.Background(), PromptTranslateZH, map[string]string{"Text": "hello, world"})
	require.NoError(t, err)
	assert.Equal(t, "你好，世界", reply)

	assert.Equal(t, "deepseek-chat", req.Model)
	assert.InDelta(t, 0.3, req.Temperature, 0.001)
	assert.Equal(t, 2000, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "hello, world", req.Messages[1].Content)
}

func TestClient_Failures(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	ctx := context.Background()

	_, err = NewClient(Options{}, catalog).Complete(ctx, PromptTags, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	srv := fakeLLM(t, "   ", nil)
	client := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL + "/v1"}, catalog)
	_, err = client.Complete(ctx, PromptTranslateEN, map[string]string{"Text": "x"})
	assert.ErrorIs(t, err, ErrEmptyReply)

	_, err = client.Complete(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrUnknownPrompt)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusBadGateway)
	}))
	t.Cleanup(down.Close)
	_, err = NewClient(Options{APIKey: "k", BaseURL: down.URL}, catalog).Complete(ctx, PromptExpand, map[string]string{"Query": "q"})
	assert.Error(t, err)
}
