// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"

	"quill/internal/cache"
	"quill/internal/database"
	"quill/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByClerkID(ctx context.Context, clerkID string) (*models.User, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Sync(ctx context.Context, user *models.User) (*models.User, bool, error)
	UpdateBio(ctx context.Context, id uuid.UUID, bio string) (*models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	defer track("select", "users")()

	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByClerkID resolves the local row of an external identity. Rows are
// cached briefly since every authenticated call starts here.
func (r *userRepository) GetByClerkID(ctx context.Context, clerkID string) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(clerkID), &user, cache.UserTTL, func(ctx context.Context) error {
		defer track("select", "users")()
		if err := r.db.WithContext(ctx).Where("clerk_id = ?", clerkID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundMessage("User not found, please sync first")
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

// Sync creates the user for an external identity or refreshes its profile.
// Email and avatar are only overwritten when supplied. The boolean reports
// whether a row was created.
func (r *userRepository) Sync(ctx context.Context, in *models.User) (*models.User, bool, error) {
	defer track("upsert", "users")()

	var (
		out     models.User
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("clerk_id = ?", in.ClerkID).First(&out).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			out = *in
			created = true
			return tx.Create(&out).Error
		}
		if err != nil {
			return err
		}

		out.Username = in.Username
		if in.Email != nil {
			out.Email = in.Email
		}
		if in.Avatar != "" {
			out.Avatar = in.Avatar
		}
		return tx.Save(&out).Error
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, false, models.NewBadRequestError("Username or email already in use")
		}
		return nil, false, models.NewInternalError(err)
	}

	cache.InvalidateUser(ctx, in.ClerkID)
	return &out, created, nil
}

func (r *userRepository) UpdateBio(ctx context.Context, id uuid.UUID, bio string) (*models.User, error) {
	defer track("update", "users")()

	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("bio", bio)
	if res.Error != nil {
		return nil, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("User", id)
	}

	user, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cache.InvalidateUser(ctx, user.ClerkID)
	return user, nil
}
