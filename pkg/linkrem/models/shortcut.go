package models

import (
	"time"
)

// Shortcut binds a short key to a link so it can be opened by key
type Shortcut struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	OwnerID   uint      `gorm:"not null;uniqueIndex:idx_shortcut_owner_key" json:"owner_id"`
	Key       string    `gorm:"column:shortcut_key;size:64;not null;uniqueIndex:idx_shortcut_owner_key" json:"key"`
	LinkID    uint      `gorm:"not null;uniqueIndex" json:"link_id"`
}
