package models

import (
	"time"

	"gorm.io/gorm"
)

// ExtensionToken is a long-lived bearer token handed to the browser extension
type ExtensionToken struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	TokenHash   string         `gorm:"size:64;uniqueIndex;not null" json:"-"`
	TokenPrefix string         `gorm:"not null" json:"token_prefix"` // First few chars for identification
	Description string         `json:"description"`
	LastUsedAt  *time.Time     `json:"last_used_at"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
