package models

import (
	"time"
)

// SessionTagName is the reserved tag applied to links created through a session.
const SessionTagName = "session"

// Tag represents a user-scoped label that can be applied to links.
// Locked tags are reserved and survive the orphan sweep.
type Tag struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	OwnerID   uint      `gorm:"not null;uniqueIndex:idx_tag_owner_name" json:"owner_id"`
	TagName   string    `gorm:"size:191;not null;uniqueIndex:idx_tag_owner_name" json:"tag_name"`
	Locked    bool      `gorm:"default:false" json:"locked"`

	// Relationships
	Links []Link `gorm:"many2many:link_tags;" json:"links,omitempty"`
}
