package models

// Realtime and bus event types.
const (
	EventPostCreated     = "post_created"
	EventPostDeleted     = "post_deleted"
	EventPostLiked       = "post_liked"
	EventPostUnliked     = "post_unliked"
	EventPostFavorited   = "post_favorited"
	EventPostUnfavorited = "post_unfavorited"
	EventUserFollowed    = "user_followed"
	EventUserUnfollowed  = "user_unfollowed"
	EventCommentCreated  = "comment_created"
	EventCommentDeleted  = "comment_deleted"
)

// Event is a domain event emitted after a mutation commits. Recipient, when
// set, is the clerk id of the user the event is about (a post author or a
// followed user) and gets a personal copy.
type Event struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload"`
	Recipient string `json:"-"`
	Personal  bool   `json:"personal,omitempty"`
}
