package database

import (
	"errors"
	"testing"

	"gorm.io/gorm"
)

type uniqueRow struct {
	ID   uint
	Name string `gorm:"uniqueIndex"`
}

func TestConnectSQLite(t *testing.T) {
	if err := Connect("sqlite", "file::memory:"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { Close() })

	if GetDB() == nil {
		t.Fatal("Expected global DB to be set")
	}
}

func TestOpenTranslatesDuplicateKey(t *testing.T) {
	db, err := Open("sqlite", "file:TestOpenTranslatesDuplicateKey?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&uniqueRow{}); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	db.Create(&uniqueRow{Name: "a"})
	err = db.Create(&uniqueRow{Name: "a"}).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("Expected gorm.ErrDuplicatedKey, got %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("postgres", "whatever"); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}
