package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Token is an opaque bearer credential. Tokens do not expire.
type Token struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Value     string    `gorm:"size:64;uniqueIndex;not null" json:"token"` // Unique index turns a collision into a retry
	UserID    uuid.UUID `gorm:"type:char(36);not null;index" json:"userID"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"-"`
}

func (t *Token) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Session backs the database session store.
type Session struct {
	ID        string    `gorm:"size:64;primaryKey"`
	UserID    uuid.UUID `gorm:"type:char(36);not null;index"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE"`
	CSRFToken string    `gorm:"size:64"`        // Pending form token, empty once consumed
	ExpiresAt time.Time `gorm:"not null;index"` // Pushed forward on every lookup
	CreatedAt time.Time
}
