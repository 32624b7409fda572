package models

import (
	"time"
)

// Link represents a saved URL owned by a single user.
// The name is unique per owner; links are hard-deleted so a name can be reused.
type Link struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	OwnerID    uint      `gorm:"not null;uniqueIndex:idx_link_owner_name" json:"owner_id"`
	Name       string    `gorm:"size:191;not null;uniqueIndex:idx_link_owner_name" json:"name"`
	URL        string    `gorm:"not null" json:"url"`
	ClickCount uint      `gorm:"default:0" json:"click_count"`

	// Relationships
	Tags     []Tag     `gorm:"many2many:link_tags;" json:"tags,omitempty"`
	Shortcut *Shortcut `gorm:"foreignKey:LinkID" json:"shortcut,omitempty"`
}

// TagNames returns the names of the link's loaded tags in load order.
func (l Link) TagNames() []string {
	names := make([]string, len(l.Tags))
	for i, t := range l.Tags {
		names[i] = t.TagName
	}
	return names
}
