package repository

import (
	"context"

	"quill/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ImageRepository stores the images attached to posts.
type ImageRepository interface {
	Append(ctx context.Context, postID uuid.UUID, imageURL string) (*models.PostImage, error)
}

type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository returns a repository implementation for post images.
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

// Append adds an image after the post's existing ones.
func (r *imageRepository) Append(ctx context.Context, postID uuid.UUID, imageURL string) (*models.PostImage, error) {
	defer track("insert", "post_images")()

	var image models.PostImage
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.PostImage{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
			return err
		}
		image = models.PostImage{PostID: postID, ImageURL: imageURL, Position: int(count)}
		return tx.Create(&image).Error
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &image, nil
}
