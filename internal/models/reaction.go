package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Like represents a user's like on a post.
// The combination of PostID and UserID must be unique.
type Like struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PostID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_post_likes_post_user" json:"postId"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_post_likes_post_user;index" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`

	Post Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Like) TableName() string {
	return "post_likes"
}

func (l *Like) BeforeCreate(_ *gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// Favorite represents a user's bookmark on a post.
// The combination of PostID and UserID must be unique.
type Favorite struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PostID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_post_favorites_post_user" json:"postId"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_post_favorites_post_user;index" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`

	Post Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Favorite) TableName() string {
	return "post_favorites"
}

func (f *Favorite) BeforeCreate(_ *gorm.DB) error {
	ensureID(&f.ID)
	return nil
}

// ReactionKind selects between the two post reaction tables.
type ReactionKind string

const (
	ReactionLike     ReactionKind = "like"
	ReactionFavorite ReactionKind = "favorite"
)

// Table returns the join table backing the reaction kind.
func (k ReactionKind) Table() string {
	if k == ReactionFavorite {
		return Favorite{}.TableName()
	}
	return Like{}.TableName()
}
