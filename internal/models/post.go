package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is an article owned by exactly one user.
type Post struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Title     string      `gorm:"size:200;not null" json:"title"`
	Content   string      `gorm:"type:text;not null" json:"content"`
	AuthorID  uuid.UUID   `gorm:"type:uuid;not null;index" json:"authorId"`
	Author    User        `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	Images    []PostImage `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time   `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func (p *Post) BeforeCreate(_ *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// PostImage is an image attached to a post, kept in insertion order.
type PostImage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PostID    uuid.UUID `gorm:"type:uuid;not null;index" json:"postId"`
	ImageURL  string    `gorm:"column:image_url;type:text;not null" json:"imageUrl"`
	Position  int       `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

func (PostImage) TableName() string {
	return "post_images"
}

func (i *PostImage) BeforeCreate(_ *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// Tag is a unique label, created lazily the first time it is proposed.
type Tag struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"-"`
}

func (t *Tag) BeforeCreate(_ *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// PostTag joins posts and tags.
type PostTag struct {
	PostID uuid.UUID `gorm:"type:uuid;primaryKey"`
	TagID  uuid.UUID `gorm:"type:uuid;primaryKey;index"`

	Post Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	Tag  Tag  `gorm:"foreignKey:TagID;constraint:OnDelete:CASCADE"`
}

func (PostTag) TableName() string {
	return "post_tags"
}
