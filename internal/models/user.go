// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a locally mirrored account. ClerkID is the subject issued by the
// external identity provider and is the only key clients ever present.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ClerkID   string    `gorm:"column:clerk_id;uniqueIndex;not null" json:"clerkId"`
	Email     *string   `gorm:"size:255;uniqueIndex" json:"email"`
	Username  string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Avatar    string    `gorm:"type:text" json:"avatar"`
	Bio       string    `gorm:"size:500" json:"bio"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// Snippet returns the public author projection used inside posts.
func (u User) Snippet() UserSnippet {
	return UserSnippet{ID: u.ID, Username: u.Username, Avatar: u.Avatar, Email: u.Email}
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
