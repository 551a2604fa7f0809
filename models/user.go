package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Username     string    `gorm:"size:191;uniqueIndex;not null" json:"username"` // Login name
	PasswordHash string    `gorm:"not null" json:"-"`                             // Never expose in JSON
	TwitterURL   *string   `json:"twitterURL,omitempty"`                          // Optional profile link
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// BeforeCreate assigns a random UUID when the caller did not set one.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// PublicUser is the only user representation that leaves the process.
type PublicUser struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Username   string    `json:"username"`
	TwitterURL *string   `json:"twitterURL,omitempty"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Name:       u.Name,
		Username:   u.Username,
		TwitterURL: u.TwitterURL,
	}
}

func PublicUsers(users []User) []PublicUser {
	out := make([]PublicUser, len(users))
	for i := range users {
		out[i] = users[i].Public()
	}
	return out
}
