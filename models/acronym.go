package models

import (
	"time"

	"github.com/google/uuid"
)

// Acronym is a short/long pair owned by the user who last wrote it.
type Acronym struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Short     string    `gorm:"not null;index" json:"short"`                // e.g. OMG
	Long      string    `gorm:"not null" json:"long"`                       // e.g. Oh My God
	UserID    uuid.UUID `gorm:"type:char(36);not null;index" json:"userID"` // Owner, rebound on every update
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
