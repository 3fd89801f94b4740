package seed

import (
	"context"
	"fmt"
	"log/slog"

	"quill/internal/database"
	"quill/internal/middleware"
	"quill/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool

	// MaxDays bounds how far back post timestamps are spread.
	MaxDays int
	// DryRun builds entities without writing them.
	DryRun bool
	// RandSeed makes a run reproducible; zero seeds from the clock.
	RandSeed int64
}

// Result counts what a Seed run wrote.
type Result struct {
	Users     int
	Posts     int
	Comments  int
	Likes     int
	Favorites int
	Follows   int
}

var tagPool = []string{
	"go", "databases", "devops", "frontend", "backend", "ai", "career",
	"testing", "design", "security", "cloud", "open-source", "tutorial",
	"performance", "writing",
}

// Seed populates the database with demo users, posts and interactions.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Result, error) {
	log := middleware.Logger.With(slog.String("component", "seed"))
	log.Info("starting database seeding",
		slog.Int("users", opts.NumUsers), slog.Int("posts", opts.NumPosts))

	if opts.NumUsers < 1 {
		return nil, fmt.Errorf("seed: at least one user is required")
	}
	if opts.ShouldClean && !opts.DryRun {
		if err := Clean(ctx, db); err != nil {
			log.Warn("could not clear existing data, continuing", slog.String("error", err.Error()))
		}
	}

	f := NewFactory(db, opts)
	res := &Result{}

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := f.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	res.Users = len(users)

	posts := make([]*models.Post, 0, opts.NumPosts)
	for i := 0; i < opts.NumPosts; i++ {
		author := users[f.rnd.Intn(len(users))]
		p, err := f.CreatePost(author, 3)
		if err != nil {
			return nil, fmt.Errorf("create post: %w", err)
		}
		if err := f.TagPost(ctx, p, pickTags(f, 3)...); err != nil {
			return nil, fmt.Errorf("tag post: %w", err)
		}
		posts = append(posts, p)
	}
	res.Posts = len(posts)

	for _, p := range posts {
		n, err := seedComments(f, users, p)
		if err != nil {
			return nil, err
		}
		res.Comments += n
	}

	for _, u := range users {
		for _, p := range posts {
			roll := f.rnd.Float32()
			if roll < 0.25 {
				if err := f.CreateReaction(models.ReactionLike, u, p); err != nil {
					return nil, fmt.Errorf("create like: %w", err)
				}
				res.Likes++
			}
			if roll < 0.08 {
				if err := f.CreateReaction(models.ReactionFavorite, u, p); err != nil {
					return nil, fmt.Errorf("create favorite: %w", err)
				}
				res.Favorites++
			}
		}
	}

	for i, u := range users {
		for j, other := range users {
			if i == j || f.rnd.Float32() >= 0.3 {
				continue
			}
			if err := f.CreateFollow(u, other); err != nil {
				return nil, fmt.Errorf("create follow: %w", err)
			}
			res.Follows++
		}
	}

	log.Info("database seeding completed",
		slog.Int("users", res.Users),
		slog.Int("posts", res.Posts),
		slog.Int("comments", res.Comments),
		slog.Int("likes", res.Likes),
		slog.Int("follows", res.Follows),
	)
	return res, nil
}

// seedComments adds up to three top-level comments to p, each with up to
// two replies.
func seedComments(f *Factory, users []*models.User, p *models.Post) (int, error) {
	count := 0
	for i := f.rnd.Intn(4); i > 0; i-- {
		top, err := f.CreateComment(users[f.rnd.Intn(len(users))], p, nil)
		if err != nil {
			return count, fmt.Errorf("create comment: %w", err)
		}
		count++
		for j := f.rnd.Intn(3); j > 0; j-- {
			if _, err := f.CreateComment(users[f.rnd.Intn(len(users))], p, top); err != nil {
				return count, fmt.Errorf("create reply: %w", err)
			}
			count++
		}
	}
	return count, nil
}

func pickTags(f *Factory, max int) []string {
	n := f.rnd.Intn(max) + 1
	picked := make([]string, 0, n)
	for _, i := range f.rnd.Perm(len(tagPool))[:n] {
		picked = append(picked, tagPool[i])
	}
	return picked
}

// Clean removes every row of the application tables, children first.
func Clean(ctx context.Context, db *gorm.DB) error {
	middleware.Logger.Info("clearing existing data")
	if db.Dialector.Name() == "postgres" {
		return db.WithContext(ctx).Exec(`TRUNCATE TABLE post_tags, tags, post_likes, post_favorites, follows, comments, post_images, posts, users CASCADE`).Error
	}

	tables := database.PersistentModels()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := len(tables) - 1; i >= 0; i-- {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(tables[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
