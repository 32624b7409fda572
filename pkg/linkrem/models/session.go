package models

import (
	"time"
)

// Session represents a named collection of links, typically a set of
// browser tabs saved together by the extension.
type Session struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	OwnerID   uint      `gorm:"not null;uniqueIndex:idx_session_owner_name" json:"owner_id"`
	Name      string    `gorm:"size:191;not null;uniqueIndex:idx_session_owner_name" json:"name"`

	// Relationships
	Links []Link `gorm:"many2many:session_links;" json:"links,omitempty"`
}
