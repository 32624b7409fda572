package models

import "gorm.io/gorm"

// AllModels returns all models for migration
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Link{},
		&Tag{},
		&Session{},
		&Shortcut{},
		&ExtensionToken{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	if db.Dialector.Name() == "mysql" {
		// Tag and link names are compared case-sensitively
		db = db.Set("gorm:table_options", "CHARSET=utf8mb4 COLLATE=utf8mb4_bin")
	}
	return db.AutoMigrate(AllModels()...)
}
