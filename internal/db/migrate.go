package db

import (
	"fmt"

	"github.com/mystery-events/voucherd/internal/models"
	"gorm.io/gorm"
)

// Migrate applies the schema for all voucher service tables.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.Event{},
		&models.Voucher{},
		&models.EmailTemplate{},
		&models.WebhookEvent{},
		&models.Admin{},
		&models.Setting{},
	)
}
