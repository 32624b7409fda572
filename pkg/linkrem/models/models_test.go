package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func TestAutoMigrate(t *testing.T) {
	db := setupTestDB(t)

	err := AutoMigrate(db)
	if err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}

	tables := []string{"users", "links", "tags", "sessions", "shortcuts", "extension_tokens", "link_tags", "session_links"}
	for _, table := range tables {
		if !db.Migrator().HasTable(table) {
			t.Errorf("Expected table %s to exist", table)
		}
	}
}

func TestUserModel(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	user := User{
		Email:        "test@example.com",
		PasswordHash: "hashed_password",
		Name:         "Test User",
	}

	result := db.Create(&user)
	if result.Error != nil {
		t.Fatalf("Failed to create user: %v", result.Error)
	}

	if user.ID == 0 {
		t.Error("Expected user ID to be set after create")
	}

	user2 := User{
		Email:        "test@example.com",
		PasswordHash: "another_hash",
		Name:         "Another User",
	}
	result = db.Create(&user2)
	if result.Error == nil {
		t.Error("Expected error when creating user with duplicate email")
	}
}

func TestLinkWithTags(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	user := User{Email: "test@example.com", PasswordHash: "hash", Name: "Test"}
	db.Create(&user)

	tag1 := Tag{OwnerID: user.ID, TagName: "golang"}
	tag2 := Tag{OwnerID: user.ID, TagName: "programming"}
	db.Create(&tag1)
	db.Create(&tag2)

	link := Link{
		OwnerID: user.ID,
		Name:    "Example Site",
		URL:     "https://example.com",
		Tags:    []Tag{tag1, tag2},
	}
	result := db.Create(&link)
	if result.Error != nil {
		t.Fatalf("Failed to create link: %v", result.Error)
	}

	var loadedLink Link
	db.Preload("Tags").First(&loadedLink, link.ID)
	if len(loadedLink.Tags) != 2 {
		t.Errorf("Expected 2 tags, got %d", len(loadedLink.Tags))
	}

	names := loadedLink.TagNames()
	if len(names) != 2 {
		t.Errorf("Expected 2 tag names, got %d", len(names))
	}
}

func TestLinkNameUniquePerOwner(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	alice := User{Email: "alice@example.com", PasswordHash: "hash", Name: "Alice"}
	bob := User{Email: "bob@example.com", PasswordHash: "hash", Name: "Bob"}
	db.Create(&alice)
	db.Create(&bob)

	if err := db.Create(&Link{OwnerID: alice.ID, Name: "docs", URL: "https://a.example.com"}).Error; err != nil {
		t.Fatalf("Failed to create link: %v", err)
	}

	err := db.Create(&Link{OwnerID: alice.ID, Name: "docs", URL: "https://b.example.com"}).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("Expected duplicated key error, got %v", err)
	}

	// Same name under a different owner is fine
	if err := db.Create(&Link{OwnerID: bob.ID, Name: "docs", URL: "https://c.example.com"}).Error; err != nil {
		t.Errorf("Expected link for another owner to be created, got %v", err)
	}
}

func TestTagNameUniquePerOwner(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	db.Create(&Tag{OwnerID: 1, TagName: "work"})
	if err := db.Create(&Tag{OwnerID: 1, TagName: "work"}).Error; err == nil {
		t.Error("Expected error when creating duplicate tag for the same owner")
	}
	if err := db.Create(&Tag{OwnerID: 1, TagName: "Work"}).Error; err != nil {
		t.Errorf("Expected case-distinct tag to be created, got %v", err)
	}
	if err := db.Create(&Tag{OwnerID: 2, TagName: "work"}).Error; err != nil {
		t.Errorf("Expected tag for another owner to be created, got %v", err)
	}
}

func TestSessionWithLinks(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	user := User{Email: "test@example.com", PasswordHash: "hash", Name: "Test"}
	db.Create(&user)

	session := Session{
		OwnerID: user.ID,
		Name:    "Morning tabs",
		Links: []Link{
			{OwnerID: user.ID, Name: "news", URL: "https://news.example.com"},
			{OwnerID: user.ID, Name: "mail", URL: "https://mail.example.com"},
		},
	}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	var loaded Session
	db.Preload("Links").First(&loaded, session.ID)
	if len(loaded.Links) != 2 {
		t.Errorf("Expected 2 links, got %d", len(loaded.Links))
	}
}
