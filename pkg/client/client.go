// Package client is a Go client for the Quill API. Besides typed calls for
// every route it provides Toggle, which keeps a like, favorite or follow
// button consistent with the server while mutations are in flight.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quill/internal/models"

	"github.com/google/uuid"
)

// Client calls the Quill REST API under BaseURL + "/api".
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New returns a client for the API served at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("quill: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("quill: %d: %s", e.Status, e.Message)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api"+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		var errBody models.ErrorResponse
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil {
			apiErr.Code = errBody.Code
			apiErr.Message = errBody.Error
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func pageQuery(path string, limit, offset int) string {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// SyncUserRequest is the profile mirrored from the identity provider.
type SyncUserRequest struct {
	Username string  `json:"username"`
	Email    *string `json:"email,omitempty"`
	Avatar   string  `json:"avatar,omitempty"`
}

// SyncUser creates or updates the caller's user row. created is true when
// the row did not exist yet.
func (c *Client) SyncUser(ctx context.Context, in SyncUserRequest) (user *models.User, created bool, err error) {
	var out struct {
		User    models.User `json:"user"`
		Created bool        `json:"created"`
	}
	if err := c.do(ctx, http.MethodPost, "/users/sync", in, &out); err != nil {
		return nil, false, err
	}
	return &out.User, out.Created, nil
}

// Me returns the caller's user row.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var out struct {
		User models.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ListPosts returns the newest posts first.
func (c *Client) ListPosts(ctx context.Context, limit, offset int) ([]models.PostView, error) {
	var out struct {
		Posts []models.PostView `json:"posts"`
	}
	if err := c.do(ctx, http.MethodGet, pageQuery("/posts", limit, offset), nil, &out); err != nil {
		return nil, err
	}
	return out.Posts, nil
}

// GetPost returns one post with the caller's flags.
func (c *Client) GetPost(ctx context.Context, id uuid.UUID) (*models.PostView, error) {
	var out struct {
		Post models.PostView `json:"post"`
	}
	if err := c.do(ctx, http.MethodGet, "/posts/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out.Post, nil
}

// CreatePostRequest is the body of a new post.
type CreatePostRequest struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	ImageURLs []string `json:"imageUrls,omitempty"`
}

func (c *Client) CreatePost(ctx context.Context, in CreatePostRequest) (*models.PostView, error) {
	var out struct {
		Post models.PostView `json:"post"`
	}
	if err := c.do(ctx, http.MethodPost, "/posts", in, &out); err != nil {
		return nil, err
	}
	return &out.Post, nil
}

func (c *Client) DeletePost(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/posts/"+id.String(), nil, nil)
}

// ToggleLike flips the caller's like on a post and returns the new state.
func (c *Client) ToggleLike(ctx context.Context, postID uuid.UUID) (bool, error) {
	var out struct {
		IsLiked bool `json:"isLiked"`
	}
	if err := c.do(ctx, http.MethodPost, "/posts/"+postID.String()+"/like/toggle", nil, &out); err != nil {
		return false, err
	}
	return out.IsLiked, nil
}

// ToggleFavorite flips the caller's favorite on a post and returns the new state.
func (c *Client) ToggleFavorite(ctx context.Context, postID uuid.UUID) (bool, error) {
	var out struct {
		IsFavorited bool `json:"isFavorited"`
	}
	if err := c.do(ctx, http.MethodPost, "/posts/"+postID.String()+"/favorite/toggle", nil, &out); err != nil {
		return false, err
	}
	return out.IsFavorited, nil
}

// ToggleFollow flips whether the caller follows userID and returns the new state.
func (c *Client) ToggleFollow(ctx context.Context, userID uuid.UUID) (bool, error) {
	var out struct {
		IsFollowing bool `json:"isFollowing"`
	}
	if err := c.do(ctx, http.MethodPost, "/users/"+userID.String()+"/follow/toggle", nil, &out); err != nil {
		return false, err
	}
	return out.IsFollowing, nil
}

// FollowStats returns both follow counts of userID.
func (c *Client) FollowStats(ctx context.Context, userID uuid.UUID) (*models.FollowStats, error) {
	var out struct {
		Stats models.FollowStats `json:"stats"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/"+userID.String()+"/follow/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out.Stats, nil
}

// CreateComment adds a comment, or a reply when parentID is non-nil.
func (c *Client) CreateComment(ctx context.Context, postID uuid.UUID, content string, parentID *uuid.UUID) (*models.CommentView, error) {
	body := struct {
		Content  string     `json:"content"`
		ParentID *uuid.UUID `json:"parentId,omitempty"`
	}{content, parentID}

	var out struct {
		Comment models.CommentView `json:"comment"`
	}
	if err := c.do(ctx, http.MethodPost, "/posts/"+postID.String()+"/comments", body, &out); err != nil {
		return nil, err
	}
	return &out.Comment, nil
}

// ListComments returns top-level comments with their replies and the
// number of top-level comments on the post.
func (c *Client) ListComments(ctx context.Context, postID uuid.UUID, limit, offset int) ([]models.CommentView, int64, error) {
	var out struct {
		Comments []models.CommentView `json:"comments"`
		Total    int64                `json:"total"`
	}
	path := pageQuery("/posts/"+postID.String()+"/comments", limit, offset)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, 0, err
	}
	return out.Comments, out.Total, nil
}

func (c *Client) DeleteComment(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/comments/"+id.String(), nil, nil)
}

// SearchResult is the response of Search.
type SearchResult struct {
	Posts     []models.PostView `json:"posts"`
	Total     int               `json:"total"`
	Keywords  []string          `json:"keywords"`
	AISummary string            `json:"aiSummary"`
}

// Search runs the AI-assisted post search.
func (c *Client) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out SearchResult
	if err := c.do(ctx, http.MethodGet, "/ai/search?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LikeMutation adapts ToggleLike for Toggle.Flip.
func (c *Client) LikeMutation(postID uuid.UUID) Mutation {
	return func(ctx context.Context) (bool, error) { return c.ToggleLike(ctx, postID) }
}

// FavoriteMutation adapts ToggleFavorite for Toggle.Flip.
func (c *Client) FavoriteMutation(postID uuid.UUID) Mutation {
	return func(ctx context.Context) (bool, error) { return c.ToggleFavorite(ctx, postID) }
}

// FollowMutation adapts ToggleFollow for Toggle.Flip.
func (c *Client) FollowMutation(userID uuid.UUID) Mutation {
	return func(ctx context.Context) (bool, error) { return c.ToggleFollow(ctx, userID) }
}
