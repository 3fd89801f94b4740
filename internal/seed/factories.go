// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"quill/internal/models"
	"quill/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by Seed and by tests.
type Factory struct {
	db    *gorm.DB
	opts  Options
	fake  *gofakeit.Faker
	rnd   *rand.Rand
	tags  repository.TagRepository
	users int
}

// NewFactory creates a new Factory bound to the provided Gorm DB. A zero
// opts.RandSeed seeds from the clock.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	f := &Factory{
		db:   db,
		opts: opts,
		fake: gofakeit.New(seed),
		// #nosec G404: acceptable for seeding
		rnd: rand.New(rand.NewSource(seed)),
	}
	if db != nil {
		f.tags = repository.NewTagRepository(db)
	}
	return f
}

// BuildUser constructs a user with a unique clerk id and username without
// persisting it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	f.users++
	username := fmt.Sprintf("%s_%d", truncate(strings.ToLower(f.fake.Username()), 40), f.users)
	email := username + "@example.com"
	user := &models.User{
		ClerkID:  "seed_" + strings.ReplaceAll(f.fake.UUID(), "-", ""),
		Username: username,
		Email:    &email,
		Bio:      f.fake.Sentence(10),
		Avatar:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.fake.UUID()),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser constructs and persists a sample user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if f.opts.DryRun {
		user.ID = uuid.New()
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post by author with a created_at spread over the
// last MaxDays days. It is not persisted.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	age := time.Duration(f.rnd.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rnd.Intn(24))*time.Hour +
		time.Duration(f.rnd.Intn(60))*time.Minute

	post := &models.Post{
		Title:     truncate(strings.TrimSuffix(f.fake.Sentence(6), "."), 200),
		Content:   f.fake.Paragraph(f.rnd.Intn(3)+1, 4, 12, "\n\n"),
		AuthorID:  author.ID,
		CreatedAt: time.Now().Add(-age),
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost persists a post with up to maxImages picsum images.
func (f *Factory) CreatePost(author *models.User, maxImages int, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, overrides...)
	if maxImages > 0 {
		n := f.rnd.Intn(maxImages + 1)
		for i := 0; i < n; i++ {
			post.Images = append(post.Images, models.PostImage{
				ImageURL: fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.fake.UUID()),
				Position: i,
			})
		}
	}
	if f.opts.DryRun {
		post.ID = uuid.New()
		return post, nil
	}
	if err := f.db.Omit("Author").Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// TagPost attaches tags by name, creating missing ones.
func (f *Factory) TagPost(ctx context.Context, post *models.Post, names ...string) error {
	if f.opts.DryRun || len(names) == 0 {
		return nil
	}
	tags, err := f.tags.FindOrCreate(ctx, names)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	return f.tags.AttachToPost(ctx, post.ID, ids)
}

// CreateComment persists a comment by user on post. A non-nil parent makes
// it a reply.
func (f *Factory) CreateComment(user *models.User, post *models.Post, parent *models.Comment) (*models.Comment, error) {
	comment := &models.Comment{
		Content:   f.fake.Sentence(f.rnd.Intn(12) + 4),
		UserID:    user.ID,
		PostID:    post.ID,
		CreatedAt: post.CreatedAt.Add(time.Duration(f.rnd.Intn(72)+1) * time.Hour),
	}
	if parent != nil {
		comment.ParentID = &parent.ID
		comment.CreatedAt = parent.CreatedAt.Add(time.Duration(f.rnd.Intn(60)+1) * time.Minute)
	}
	if now := time.Now(); comment.CreatedAt.After(now) {
		comment.CreatedAt = now
	}
	if f.opts.DryRun {
		comment.ID = uuid.New()
		return comment, nil
	}
	if err := f.db.Omit("User", "Post").Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateReaction persists a like or favorite from user on post.
func (f *Factory) CreateReaction(kind models.ReactionKind, user *models.User, post *models.Post) error {
	if f.opts.DryRun {
		return nil
	}
	if kind == models.ReactionFavorite {
		return f.db.Omit("User", "Post").Create(&models.Favorite{UserID: user.ID, PostID: post.ID}).Error
	}
	return f.db.Omit("User", "Post").Create(&models.Like{UserID: user.ID, PostID: post.ID}).Error
}

// CreateFollow persists follower -> following.
func (f *Factory) CreateFollow(follower, following *models.User) error {
	if f.opts.DryRun {
		return nil
	}
	return f.db.Omit("Follower", "Following").Create(&models.Follow{
		FollowerID:  follower.ID,
		FollowingID: following.ID,
	}).Error
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
