package migration

import (
	"gorm.io/gorm"

	"github.com/guvercin/messaging-backend/internal/domain"
)

// Run applies the schema for the message store.
func Run(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Message{},
		&domain.DeletionMarker{},
	)
}
