package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"quill/internal/ai"
	"quill/internal/cache"
	"quill/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tagNames(tags []models.TagView) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names
}

func TestPostService_CreatePost(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	author := h.seedUser(t, "alice")
	h.llm.Replies[ai.PromptTags] = "```json\n[\"Go\", \"web\", \"go\"]\n```"

	view, err := h.posts.CreatePost(ctx, CreatePostInput{
		ClerkID:   author.ClerkID,
		Title:     "  Learning Go  ",
		Content:   "Channels and goroutines",
		ImageURLs: []string{"https://cdn.example.com/a.png", "/uploads/b.png"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Learning Go", view.Title)
	assert.Equal(t, author.ID, view.AuthorID)
	assert.Equal(t, "alice", view.Author.Username)
	require.Len(t, view.Images, 2)
	assert.Equal(t, "https://cdn.example.com/a.png", view.Images[0].ImageURL)
	assert.Equal(t, "/uploads/b.png", view.Images[1].ImageURL)
	assert.ElementsMatch(t, []string{"go", "web"}, tagNames(view.Tags))
	assert.Zero(t, view.LikesCount)
	assert.False(t, view.IsLiked)

	assert.Equal(t, []string{models.EventPostCreated}, h.sink.types())
}

func TestPostService_CreatePost_TaggingFailureIsSwallowed(t *testing.T) {
	h := newHarness(t, "")
	author := h.seedUser(t, "alice")
	h.llm.Err = errors.New("upstream unavailable")

	view, err := h.posts.CreatePost(context.Background(), CreatePostInput{
		ClerkID: author.ClerkID,
		Title:   "Hello",
		Content: "World",
	})
	require.NoError(t, err)
	assert.Empty(t, view.Tags)
	assert.Equal(t, int64(1), h.count(t, &models.Post{}, "id = ?", view.ID))
}

func TestPostService_CreatePost_AutoTagsDisabled(t *testing.T) {
	h := newHarness(t, "ai_auto_tags=off")
	author := h.seedUser(t, "alice")
	h.llm.Replies[ai.PromptTags] = `["go"]`

	view, err := h.posts.CreatePost(context.Background(), CreatePostInput{
		ClerkID: author.ClerkID,
		Title:   "Hello",
		Content: "World",
	})
	require.NoError(t, err)
	assert.Empty(t, view.Tags)
	assert.Empty(t, h.llm.Calls())
}

func TestPostService_CreatePost_Validation(t *testing.T) {
	h := newHarness(t, "ai_auto_tags=off")
	author := h.seedUser(t, "alice")
	ctx := context.Background()

	tooMany := make([]string, maxPostImages+1)
	for i := range tooMany {
		tooMany[i] = "https://cdn.example.com/x.png"
	}

	tests := []struct {
		name string
		in   CreatePostInput
		code string
	}{
		{"blank title", CreatePostInput{ClerkID: author.ClerkID, Title: "   ", Content: "c"}, models.CodeValidation},
		{"long title", CreatePostInput{ClerkID: author.ClerkID, Title: strings.Repeat("t", 201), Content: "c"}, models.CodeValidation},
		{"empty content", CreatePostInput{ClerkID: author.ClerkID, Title: "t"}, models.CodeValidation},
		{"too many images", CreatePostInput{ClerkID: author.ClerkID, Title: "t", Content: "c", ImageURLs: tooMany}, models.CodeValidation},
		{"bad image url", CreatePostInput{ClerkID: author.ClerkID, Title: "t", Content: "c", ImageURLs: []string{"ftp://x"}}, models.CodeValidation},
		{"unsynced author", CreatePostInput{ClerkID: "clerk_ghost", Title: "t", Content: "c"}, models.CodeNotFound},
		{"anonymous", CreatePostInput{Title: "t", Content: "c"}, models.CodeUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.posts.CreatePost(ctx, tt.in)
			assertCode(t, err, tt.code)
		})
	}
	assert.Zero(t, h.count(t, &models.Post{}, "1 = 1"))
}

func TestPostService_DeletePost(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	alice := h.seedUser(t, "alice")
	bob := h.seedUser(t, "bob")
	post := h.seedPost(t, alice, "Doomed", time.Now())

	_, err := h.comments.CreateComment(ctx, CreateCommentInput{ClerkID: bob.ClerkID, PostID: post.ID, Content: "nice"})
	require.NoError(t, err)
	_, err = h.interactions.Toggle(ctx, ReactionInput{Kind: models.ReactionLike, ClerkID: bob.ClerkID, PostID: post.ID})
	require.NoError(t, err)

	err = h.posts.DeletePost(ctx, bob.ClerkID, post.ID)
	assertCode(t, err, models.CodeForbidden)

	require.NoError(t, h.posts.DeletePost(ctx, alice.ClerkID, post.ID))

	_, err = h.posts.GetPost(ctx, "", post.ID)
	assertCode(t, err, models.CodeNotFound)
	assert.Zero(t, h.count(t, &models.Comment{}, "post_id = ?", post.ID))
	assert.Zero(t, h.count(t, &models.Like{}, "post_id = ?", post.ID))

	err = h.posts.DeletePost(ctx, alice.ClerkID, post.ID)
	assertCode(t, err, models.CodeNotFound)
	assert.Equal(t, models.EventPostDeleted, h.sink.last().Type)
}

func TestPostService_AggregatesAndViewerFlags(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	alice := h.seedUser(t, "alice")
	bob := h.seedUser(t, "bob")
	carol := h.seedUser(t, "carol")
	older := h.seedPost(t, alice, "Older", time.Now().Add(-time.Hour))
	newer := h.seedPost(t, alice, "Newer", time.Now())

	for _, u := range []models.User{bob, carol} {
		_, err := h.interactions.Toggle(ctx, ReactionInput{Kind: models.ReactionLike, ClerkID: u.ClerkID, PostID: older.ID})
		require.NoError(t, err)
	}
	_, err := h.interactions.Toggle(ctx, ReactionInput{Kind: models.ReactionFavorite, ClerkID: carol.ClerkID, PostID: older.ID})
	require.NoError(t, err)
	_, err = h.comments.CreateComment(ctx, CreateCommentInput{ClerkID: bob.ClerkID, PostID: older.ID, Content: "first"})
	require.NoError(t, err)

	views, err := h.posts.ListPosts(ctx, ListPostsInput{ViewerClerkID: bob.ClerkID})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, newer.ID, views[0].ID)
	assert.Equal(t, older.ID, views[1].ID)

	assert.Equal(t, int64(2), views[1].LikesCount)
	assert.Equal(t, int64(1), views[1].FavoritesCount)
	assert.Equal(t, int64(1), views[1].CommentsCount)
	assert.True(t, views[1].IsLiked)
	assert.False(t, views[1].IsFavorited)
	assert.False(t, views[0].IsLiked)

	anonymous, err := h.posts.ListPosts(ctx, ListPostsInput{})
	require.NoError(t, err)
	assert.False(t, anonymous[1].IsLiked)

	_, err = h.posts.ListPosts(ctx, ListPostsInput{Limit: 101})
	assertCode(t, err, models.CodeValidation)
}

func TestPostService_CachedAggregatesAreInvalidatedByMutations(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
		mr.Close()
	})

	alice := h.seedUser(t, "alice")
	bob := h.seedUser(t, "bob")
	post := h.seedPost(t, alice, "Cached", time.Now())

	first, err := h.posts.GetPost(ctx, bob.ClerkID, post.ID)
	require.NoError(t, err)
	assert.Zero(t, first.LikesCount)
	assert.True(t, mr.Exists(cache.PostKey(post.ID)))

	// A row written behind the service's back stays invisible until the
	// cached aggregate is dropped.
	require.NoError(t, h.db.Create(&models.Like{PostID: post.ID, UserID: alice.ID}).Error)
	stale, err := h.posts.GetPost(ctx, bob.ClerkID, post.ID)
	require.NoError(t, err)
	assert.Zero(t, stale.LikesCount)

	_, err = h.interactions.Toggle(ctx, ReactionInput{Kind: models.ReactionLike, ClerkID: bob.ClerkID, PostID: post.ID})
	require.NoError(t, err)

	fresh, err := h.posts.GetPost(ctx, bob.ClerkID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fresh.LikesCount)
	assert.True(t, fresh.IsLiked)
}

func TestPostService_StatsOwnershipAndImages(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	alice := h.seedUser(t, "alice")
	bob := h.seedUser(t, "bob")
	post := h.seedPost(t, alice, "Mine", time.Now())

	_, err := h.interactions.Toggle(ctx, ReactionInput{Kind: models.ReactionLike, ClerkID: bob.ClerkID, PostID: post.ID})
	require.NoError(t, err)

	stats, err := h.posts.GetPostStats(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStats{LikesCount: 1}, *stats)

	_, err = h.posts.GetPostStats(ctx, uuid.New())
	assertCode(t, err, models.CodeNotFound)

	owner, err := h.posts.IsOwner(ctx, alice.ClerkID, post.ID)
	require.NoError(t, err)
	assert.True(t, owner)
	owner, err = h.posts.IsOwner(ctx, bob.ClerkID, post.ID)
	require.NoError(t, err)
	assert.False(t, owner)

	_, err = h.posts.AttachImage(ctx, bob.ClerkID, post.ID, "https://cdn.example.com/x.png")
	assertCode(t, err, models.CodeForbidden)
	_, err = h.posts.AttachImage(ctx, alice.ClerkID, post.ID, "javascript:alert(1)")
	assertCode(t, err, models.CodeValidation)

	img, err := h.posts.AttachImage(ctx, alice.ClerkID, post.ID, "https://cdn.example.com/x.png")
	require.NoError(t, err)
	assert.Equal(t, post.ID, img.PostID)

	view, err := h.posts.GetPost(ctx, "", post.ID)
	require.NoError(t, err)
	require.Len(t, view.Images, 1)
	assert.Equal(t, img.ID, view.Images[0].ID)
}

func TestPostService_ListByAuthorAndTag(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	alice := h.seedUser(t, "alice")
	bob := h.seedUser(t, "bob")
	h.llm.Replies[ai.PromptTags] = `["GoLang"]`

	created, err := h.posts.CreatePost(ctx, CreatePostInput{ClerkID: alice.ClerkID, Title: "Tagged", Content: "body"})
	require.NoError(t, err)
	h.seedPost(t, bob, "Bob's", time.Now())

	mine, err := h.posts.ListMyPosts(ctx, ListPostsInput{ViewerClerkID: alice.ClerkID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, created.ID, mine[0].ID)

	theirs, err := h.posts.ListUserPosts(ctx, bob.ID, ListPostsInput{})
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, "Bob's", theirs[0].Title)

	_, err = h.posts.ListUserPosts(ctx, uuid.New(), ListPostsInput{})
	assertCode(t, err, models.CodeNotFound)

	tagged, err := h.posts.ListByTag(ctx, "#GOLANG", ListPostsInput{})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, created.ID, tagged[0].ID)

	_, err = h.posts.ListByTag(ctx, "   ", ListPostsInput{})
	assertCode(t, err, models.CodeValidation)
}
