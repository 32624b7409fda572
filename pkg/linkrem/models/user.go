package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a user in the system
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"size:191;uniqueIndex;not null" json:"email"`
	PasswordHash string         `json:"-"`
	Name         string         `gorm:"not null" json:"name"`

	// Relationships
	Links           []Link           `gorm:"foreignKey:OwnerID" json:"links,omitempty"`
	Sessions        []Session        `gorm:"foreignKey:OwnerID" json:"sessions,omitempty"`
	ExtensionTokens []ExtensionToken `gorm:"foreignKey:UserID" json:"extension_tokens,omitempty"`
}
