package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment belongs to one post and one author. ParentID links a reply to its
// top-level comment; replies of replies are not modelled.
type Comment struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PostID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"postId"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"userId"`
	ParentID  *uuid.UUID `gorm:"type:uuid;index" json:"parentId"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	User      User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Post      Post       `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Replies   []Comment  `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (c *Comment) BeforeCreate(_ *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
