package models

import (
	"time"

	"github.com/google/uuid"
)

// UserSnippet is the author projection embedded in posts.
type UserSnippet struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar"`
	Email    *string   `json:"email"`
}

// ImageView is the public shape of a PostImage.
type ImageView struct {
	ID       uuid.UUID `json:"id"`
	ImageURL string    `json:"imageUrl"`
}

// TagView is the public shape of a Tag.
type TagView struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// PostView is a post assembled with its author, media, counts and the
// viewer-specific flags.
type PostView struct {
	ID             uuid.UUID   `json:"id"`
	Title          string      `json:"title"`
	Content        string      `json:"content"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
	AuthorID       uuid.UUID   `json:"authorId"`
	Author         UserSnippet `json:"author"`
	Images         []ImageView `json:"images"`
	Tags           []TagView   `json:"tags"`
	LikesCount     int64       `json:"likesCount"`
	FavoritesCount int64       `json:"favoritesCount"`
	CommentsCount  int64       `json:"commentsCount"`
	IsLiked        bool        `json:"isLiked"`
	IsFavorited    bool        `json:"isFavorited"`

	LikedAt     *time.Time `json:"likedAt,omitempty"`
	FavoritedAt *time.Time `json:"favoritedAt,omitempty"`
}

// PostStats holds the derived counters of one post.
type PostStats struct {
	LikesCount     int64 `json:"likesCount"`
	FavoritesCount int64 `json:"favoritesCount"`
	CommentsCount  int64 `json:"commentsCount"`
}

// CommentAuthor is the author projection embedded in comments.
type CommentAuthor struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar"`
	ClerkID  string    `json:"clerkId"`
}

// CommentView is a comment with its author and, for top-level comments, the
// replies in creation order.
type CommentView struct {
	ID        uuid.UUID     `json:"id"`
	PostID    uuid.UUID     `json:"postId"`
	UserID    uuid.UUID     `json:"userId"`
	ParentID  *uuid.UUID    `json:"parentId"`
	Content   string        `json:"content"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Author    CommentAuthor `json:"author"`
	Replies   []CommentView `json:"replies,omitempty"`
}

// NewCommentView projects a comment whose User association is loaded.
func NewCommentView(c Comment) CommentView {
	return CommentView{
		ID:        c.ID,
		PostID:    c.PostID,
		UserID:    c.UserID,
		ParentID:  c.ParentID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Author: CommentAuthor{
			ID:       c.User.ID,
			Username: c.User.Username,
			Avatar:   c.User.Avatar,
			ClerkID:  c.User.ClerkID,
		},
	}
}

// FollowEntry is one row of a following/followers listing.
type FollowEntry struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Avatar     string    `json:"avatar"`
	Bio        string    `json:"bio"`
	FollowedAt time.Time `json:"followedAt"`
}

// FollowStats holds both directions of a user's follow graph.
type FollowStats struct {
	FollowingCount int64 `json:"followingCount"`
	FollowersCount int64 `json:"followersCount"`
}

// ToggleResult is the state of a relationship after a toggle.
type ToggleResult struct {
	Active  bool
	Message string
}
