package repository

import (
	"context"
	"fmt"

	"quill/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FollowRepository manages the directed follow graph.
type FollowRepository interface {
	Toggle(ctx context.Context, followerID, followingID uuid.UUID) (bool, error)
	Add(ctx context.Context, followerID, followingID uuid.UUID) error
	Remove(ctx context.Context, followerID, followingID uuid.UUID) (bool, error)
	Exists(ctx context.Context, followerID, followingID uuid.UUID) (bool, error)
	ListFollowing(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.FollowEntry, error)
	ListFollowers(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.FollowEntry, error)
	Stats(ctx context.Context, userID uuid.UUID) (models.FollowStats, error)
}

type followRepository struct {
	db *gorm.DB
}

func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

const followPair = "follower_id = ? AND following_id = ?"

func (r *followRepository) Toggle(ctx context.Context, followerID, followingID uuid.UUID) (bool, error) {
	defer track("toggle", "follows")()
	row := &models.Follow{FollowerID: followerID, FollowingID: followingID}
	return toggleRow(ctx, r.db, &models.Follow{}, row, followPair, followerID, followingID)
}

func (r *followRepository) Add(ctx context.Context, followerID, followingID uuid.UUID) error {
	defer track("insert", "follows")()
	return insertRow(ctx, r.db, &models.Follow{FollowerID: followerID, FollowingID: followingID})
}

func (r *followRepository) Remove(ctx context.Context, followerID, followingID uuid.UUID) (bool, error) {
	defer track("delete", "follows")()
	return deleteRows(ctx, r.db, &models.Follow{}, followPair, followerID, followingID)
}

func (r *followRepository) Exists(ctx context.Context, followerID, followingID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).Where(followPair, followerID, followingID).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("follow exists: %w", err)
	}
	return n > 0, nil
}

// ListFollowing lists the users userID follows, newest edge first.
func (r *followRepository) ListFollowing(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.FollowEntry, error) {
	return r.list(ctx, "follows.following_id", "follows.follower_id", userID, limit, offset)
}

// ListFollowers lists the users following userID, newest edge first.
func (r *followRepository) ListFollowers(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.FollowEntry, error) {
	return r.list(ctx, "follows.follower_id", "follows.following_id", userID, limit, offset)
}

func (r *followRepository) list(ctx context.Context, joinCol, filterCol string, userID uuid.UUID, limit, offset int) ([]models.FollowEntry, error) {
	defer track("list", "follows")()

	entries := []models.FollowEntry{}
	err := r.db.WithContext(ctx).
		Table("follows").
		Select("users.id, users.username, users.avatar, users.bio, follows.created_at AS followed_at").
		Joins("JOIN users ON users.id = "+joinCol).
		Where(filterCol+" = ?", userID).
		Order("follows.created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list follows: %w", err)
	}
	return entries, nil
}

func (r *followRepository) Stats(ctx context.Context, userID uuid.UUID) (models.FollowStats, error) {
	defer track("count", "follows")()

	var stats models.FollowStats
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&stats.FollowingCount).Error; err != nil {
		return stats, fmt.Errorf("count following: %w", err)
	}
	if err := db.Model(&models.Follow{}).Where("following_id = ?", userID).Count(&stats.FollowersCount).Error; err != nil {
		return stats, fmt.Errorf("count followers: %w", err)
	}
	return stats, nil
}
