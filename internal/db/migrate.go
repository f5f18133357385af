package db

import (
	"fmt"

	"github.com/zulandar/quickdesk/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the GORM models kept in the local store.
func AllModels() []interface{} {
	return []interface{}{
		&models.StoredValue{},
	}
}

// AutoMigrate creates or updates all local tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
