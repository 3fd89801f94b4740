// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quill/internal/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post, imageURLs []string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	GetAuthorID(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	List(ctx context.Context, limit, offset int) ([]models.Post, error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]models.Post, error)
	ListByTag(ctx context.Context, tagName string, limit, offset int) ([]models.Post, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Post, error)
	Search(ctx context.Context, keywords []string, limit int) ([]models.Post, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.PostStats, error)
	Tags(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]models.TagView, error)
	ViewerFlags(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (liked, favorited map[uuid.UUID]bool, err error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// withDetails preloads the author and the images in insertion order.
func withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, created_at ASC")
		})
}

func (r *postRepository) Create(ctx context.Context, post *models.Post, imageURLs []string) error {
	defer track("insert", "posts")()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Author", "Images").Create(post).Error; err != nil {
			return err
		}
		if len(imageURLs) == 0 {
			return nil
		}
		images := make([]models.PostImage, 0, len(imageURLs))
		for i, url := range imageURLs {
			images = append(images, models.PostImage{PostID: post.ID, ImageURL: url, Position: i})
		}
		if err := tx.Create(&images).Error; err != nil {
			return err
		}
		post.Images = images
		return nil
	})
	if err != nil {
		return models.NewInternalError(fmt.Errorf("create post: %w", err))
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	defer track("select", "posts")()

	var post models.Post
	if err := withDetails(r.db.WithContext(ctx)).First(&post, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

// GetAuthorID is the cheap existence and ownership probe used by mutations.
func (r *postRepository) GetAuthorID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Select("id", "author_id").First(&post, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, models.NewNotFoundError("Post", id)
		}
		return uuid.Nil, models.NewInternalError(err)
	}
	return post.AuthorID, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int) ([]models.Post, error) {
	defer track("list", "posts")()

	var posts []models.Post
	err := withDetails(r.db.WithContext(ctx)).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]models.Post, error) {
	defer track("list", "posts")()

	var posts []models.Post
	err := withDetails(r.db.WithContext(ctx)).
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) ListByTag(ctx context.Context, tagName string, limit, offset int) ([]models.Post, error) {
	defer track("list", "posts")()

	var posts []models.Post
	err := withDetails(r.db.WithContext(ctx)).
		Joins("JOIN post_tags ON post_tags.post_id = posts.id").
		Joins("JOIN tags ON tags.id = post_tags.tag_id").
		Where("tags.name = ?", tagName).
		Order("posts.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// ListByIDs loads posts in the order of ids; unknown ids are skipped.
func (r *postRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Post, error) {
	if len(ids) == 0 {
		return []models.Post{}, nil
	}
	defer track("list", "posts")()

	var found []models.Post
	if err := withDetails(r.db.WithContext(ctx)).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	byID := make(map[uuid.UUID]models.Post, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	posts := make([]models.Post, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

// Search matches any keyword against title or content, newest first.
func (r *postRepository) Search(ctx context.Context, keywords []string, limit int) ([]models.Post, error) {
	defer track("search", "posts")()

	op := likeOperator(r.db)
	q := withDetails(r.db.WithContext(ctx))

	var (
		clauses []string
		args    []any
	)
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		pattern := containsPattern(kw)
		clauses = append(clauses, fmt.Sprintf(`title %s ? ESCAPE '\' OR content %s ? ESCAPE '\'`, op, op))
		args = append(args, pattern, pattern)
	}
	if len(clauses) == 0 {
		return []models.Post{}, nil
	}

	var posts []models.Post
	err := q.Where(strings.Join(clauses, " OR "), args...).
		Order("created_at DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// Delete removes a post and everything hanging off it in one transaction.
func (r *postRepository) Delete(ctx context.Context, id uuid.UUID) error {
	defer track("delete", "posts")()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dependents := []any{&models.PostImage{}, &models.Like{}, &models.Favorite{}, &models.PostTag{}}
		for _, model := range dependents {
			if err := tx.Where("post_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("post_id = ? AND parent_id IS NOT NULL", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}

		res := tx.Where("id = ?", id).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", id)
		}
		return nil
	})
	if err != nil {
		if _, ok := models.AsAppError(err); ok {
			return err
		}
		return models.NewInternalError(fmt.Errorf("delete post: %w", err))
	}
	return nil
}

type postCount struct {
	PostID uuid.UUID
	N      int64
}

func (r *postRepository) countBy(ctx context.Context, table string, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	defer track("count", table)()

	var rows []postCount
	err := r.db.WithContext(ctx).
		Table(table).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", table, err)
	}

	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.PostID] = row.N
	}
	return counts, nil
}

// Stats runs the three grouped count queries concurrently. Posts without any
// rows get zero counts.
func (r *postRepository) Stats(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.PostStats, error) {
	stats := make(map[uuid.UUID]models.PostStats, len(ids))
	if len(ids) == 0 {
		return stats, nil
	}

	var likes, favorites, comments map[uuid.UUID]int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		likes, err = r.countBy(gctx, models.Like{}.TableName(), ids)
		return err
	})
	g.Go(func() error {
		var err error
		favorites, err = r.countBy(gctx, models.Favorite{}.TableName(), ids)
		return err
	})
	g.Go(func() error {
		var err error
		comments, err = r.countBy(gctx, "comments", ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, models.NewInternalError(err)
	}

	for _, id := range ids {
		stats[id] = models.PostStats{
			LikesCount:     likes[id],
			FavoritesCount: favorites[id],
			CommentsCount:  comments[id],
		}
	}
	return stats, nil
}

type postTagRow struct {
	PostID uuid.UUID
	ID     uuid.UUID
	Name   string
}

func (r *postRepository) Tags(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]models.TagView, error) {
	tags := make(map[uuid.UUID][]models.TagView, len(ids))
	if len(ids) == 0 {
		return tags, nil
	}
	defer track("select", "post_tags")()

	var rows []postTagRow
	err := r.db.WithContext(ctx).
		Table("post_tags").
		Select("post_tags.post_id, tags.id, tags.name").
		Joins("JOIN tags ON tags.id = post_tags.tag_id").
		Where("post_tags.post_id IN ?", ids).
		Order("tags.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, row := range rows {
		tags[row.PostID] = append(tags[row.PostID], models.TagView{ID: row.ID, Name: row.Name})
	}
	return tags, nil
}

// ViewerFlags reports which of ids the user has liked and favorited.
func (r *postRepository) ViewerFlags(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, map[uuid.UUID]bool, error) {
	liked := make(map[uuid.UUID]bool)
	favorited := make(map[uuid.UUID]bool)
	if len(ids) == 0 || userID == uuid.Nil {
		return liked, favorited, nil
	}

	probe := func(table string, into map[uuid.UUID]bool) error {
		defer track("probe", table)()
		var hits []uuid.UUID
		err := r.db.WithContext(ctx).
			Table(table).
			Where("user_id = ? AND post_id IN ?", userID, ids).
			Pluck("post_id", &hits).Error
		if err != nil {
			return err
		}
		for _, id := range hits {
			into[id] = true
		}
		return nil
	}

	if err := probe(models.Like{}.TableName(), liked); err != nil {
		return nil, nil, models.NewInternalError(err)
	}
	if err := probe(models.Favorite{}.TableName(), favorited); err != nil {
		return nil, nil, models.NewInternalError(err)
	}
	return liked, favorited, nil
}
