// Package ai wraps the chat-completion API used for translation, tagging and
// search ranking, and parses its loosely structured replies.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"quill/internal/observability"

	"github.com/sashabaranov/go-openai"
)

var (
	// ErrNotConfigured means the API key or base URL is missing.
	ErrNotConfigured = errors.New("ai: api key or base url not configured")
	// ErrEmptyReply means the model answered without content.
	ErrEmptyReply = errors.New("ai: empty reply")
	// ErrUnknownPrompt means the catalog has no prompt of that name.
	ErrUnknownPrompt = errors.New("ai: unknown prompt")
)

// Completer runs one named prompt and returns the raw reply text.
type Completer interface {
	Complete(ctx context.Context, prompt string, data any) (string, error)
}

// Options configures Client.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client talks to an OpenAI compatible chat-completion endpoint.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	prompts Catalog
}

// NewClient builds a client. A client without credentials is still returned;
// every call then fails with ErrNotConfigured.
func NewClient(opts Options, prompts Catalog) *Client {
	c := &Client{model: opts.Model, timeout: opts.Timeout, prompts: prompts}
	if c.model == "" {
		c.model = "deepseek-chat"
	}
	if opts.APIKey == "" || opts.BaseURL == "" {
		return c
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	c.api = openai.NewClientWithConfig(cfg)
	return c
}

// Configured reports whether credentials were supplied.
func (c *Client) Configured() bool {
	return c.api != nil
}

func (c *Client) Complete(ctx context.Context, name string, data any) (reply string, err error) {
	if c.api == nil {
		return "", ErrNotConfigured
	}
	prompt, ok := c.prompts[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownPrompt, name)
	}
	system, user, err := prompt.Render(data)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx, span := observability.StartClientSpan(ctx, "llm", name)
	start := time.Now()
	defer func() {
		observability.ObserveAI(name, start, err)
		observability.EndSpan(span, err)
	}()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: prompt.Temperature,
		MaxTokens:   prompt.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion %s: %w", name, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	reply = strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}
