package repository

import (
	"context"
	"fmt"
	"time"

	"quill/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReactionEntry is one row of a user's like or favorite history.
type ReactionEntry struct {
	PostID    uuid.UUID
	CreatedAt time.Time
}

// ReactionRepository manages one kind of user-to-post reaction.
type ReactionRepository interface {
	Kind() models.ReactionKind
	Toggle(ctx context.Context, postID, userID uuid.UUID) (bool, error)
	Add(ctx context.Context, postID, userID uuid.UUID) error
	Remove(ctx context.Context, postID, userID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]ReactionEntry, error)
}

type reactionRepository struct {
	db   *gorm.DB
	kind models.ReactionKind
}

// NewReactionRepository returns the repository backing likes or favorites.
func NewReactionRepository(db *gorm.DB, kind models.ReactionKind) ReactionRepository {
	return &reactionRepository{db: db, kind: kind}
}

func (r *reactionRepository) Kind() models.ReactionKind {
	return r.kind
}

func (r *reactionRepository) model() any {
	if r.kind == models.ReactionFavorite {
		return &models.Favorite{}
	}
	return &models.Like{}
}

func (r *reactionRepository) row(postID, userID uuid.UUID) any {
	if r.kind == models.ReactionFavorite {
		return &models.Favorite{PostID: postID, UserID: userID}
	}
	return &models.Like{PostID: postID, UserID: userID}
}

func (r *reactionRepository) Toggle(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	defer track("toggle", r.kind.Table())()
	return toggleRow(ctx, r.db, r.model(), r.row(postID, userID), "post_id = ? AND user_id = ?", postID, userID)
}

func (r *reactionRepository) Add(ctx context.Context, postID, userID uuid.UUID) error {
	defer track("insert", r.kind.Table())()
	return insertRow(ctx, r.db, r.row(postID, userID))
}

func (r *reactionRepository) Remove(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	defer track("delete", r.kind.Table())()
	return deleteRows(ctx, r.db, r.model(), "post_id = ? AND user_id = ?", postID, userID)
}

// ListByUser returns the user's reactions, most recent first.
func (r *reactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]ReactionEntry, error) {
	defer track("list", r.kind.Table())()

	var entries []ReactionEntry
	err := r.db.WithContext(ctx).
		Table(r.kind.Table()).
		Select("post_id, created_at").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.kind.Table(), err)
	}
	return entries, nil
}
