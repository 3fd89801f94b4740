package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/featureflags"
	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingSink captures emitted events.
type recordingSink struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (r *recordingSink) Publish(_ context.Context, evt models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return r.err
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recordingSink) last() models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return models.Event{}
	}
	return r.events[len(r.events)-1]
}

// harness wires every service against a private SQLite database.
type harness struct {
	db           *gorm.DB
	llm          *testutil.FakeCompleter
	sink         *recordingSink
	users        *UserService
	posts        *PostService
	comments     *CommentService
	interactions *InteractionService
	follows      *FollowService
	ai           *AIService
}

func newHarness(t *testing.T, flags string) *harness {
	t.Helper()
	cache.SetClient(nil)

	cfg := &config.Config{
		DBDriver:     "sqlite",
		DBSQLitePath: filepath.Join(t.TempDir(), "service.db"),
		Env:          "test",
	}
	db, err := database.Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	h := &harness{
		db:   db,
		llm:  &testutil.FakeCompleter{Replies: map[string]string{}, Err: errors.New("no reply configured")},
		sink: &recordingSink{},
	}
	manager := featureflags.NewManager(flags)
	events := NewEmitter(h.sink)

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)

	h.users = NewUserService(userRepo)
	h.ai = NewAIService(h.llm, postRepo, userRepo, nil, manager)
	h.posts = NewPostService(
		postRepo,
		repository.NewTagRepository(db),
		repository.NewImageRepository(db),
		userRepo,
		h.ai.SuggestTags,
		manager,
		events,
	)
	h.ai.SetPostService(h.posts)
	h.comments = NewCommentService(repository.NewCommentRepository(db), postRepo, userRepo, events)
	h.interactions = NewInteractionService(
		repository.NewReactionRepository(db, models.ReactionLike),
		repository.NewReactionRepository(db, models.ReactionFavorite),
		postRepo,
		userRepo,
		h.posts,
		events,
	)
	h.follows = NewFollowService(repository.NewFollowRepository(db), userRepo, events)
	return h
}

func (h *harness) seedUser(t *testing.T, name string) models.User {
	t.Helper()
	user := models.User{ClerkID: "clerk_" + name, Username: name, Avatar: name + ".png"}
	require.NoError(t, h.db.Create(&user).Error)
	return user
}

func (h *harness) seedPost(t *testing.T, author models.User, title string, at time.Time) models.Post {
	t.Helper()
	post := models.Post{Title: title, Content: title + " body", AuthorID: author.ID, CreatedAt: at}
	require.NoError(t, h.db.Omit("Author", "Images").Create(&post).Error)
	return post
}

func (h *harness) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

// assertCode asserts that err is an AppError with the given code.
func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := models.AsAppError(err)
	require.True(t, ok, "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}
