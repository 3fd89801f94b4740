package repository

import (
	"context"
	"fmt"
	"strings"

	"quill/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagRepository finds or creates tags and links them to posts.
type TagRepository interface {
	FindOrCreate(ctx context.Context, names []string) ([]models.Tag, error)
	AttachToPost(ctx context.Context, postID uuid.UUID, tagIDs []uuid.UUID) error
}

type tagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

// FindOrCreate returns one Tag per distinct name. Concurrent creators of the
// same name converge on the single row guarded by the unique index.
func (r *tagRepository) FindOrCreate(ctx context.Context, names []string) ([]models.Tag, error) {
	defer track("upsert", "tags")()

	seen := make(map[string]struct{}, len(names))
	wanted := make([]models.Tag, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		wanted = append(wanted, models.Tag{Name: n})
	}
	if len(wanted) == 0 {
		return []models.Tag{}, nil
	}

	keys := make([]string, 0, len(wanted))
	for _, t := range wanted {
		keys = append(keys, t.Name)
	}

	var tags []models.Tag
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&wanted).Error; err != nil {
			return err
		}
		return tx.Where("name IN ?", keys).Find(&tags).Error
	})
	if err != nil {
		return nil, fmt.Errorf("find or create tags: %w", err)
	}
	return tags, nil
}

func (r *tagRepository) AttachToPost(ctx context.Context, postID uuid.UUID, tagIDs []uuid.UUID) error {
	if len(tagIDs) == 0 {
		return nil
	}
	defer track("insert", "post_tags")()

	links := make([]models.PostTag, 0, len(tagIDs))
	for _, id := range tagIDs {
		links = append(links, models.PostTag{PostID: postID, TagID: id})
	}
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&links).Error
	if err != nil {
		return fmt.Errorf("attach tags: %w", err)
	}
	return nil
}
