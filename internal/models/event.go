package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event is the minimal catalog record an event-type voucher binds to.
type Event struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	Title string    `gorm:"type:text;not null"`          // Event display title.
	Date  time.Time `gorm:"not null;index"`              // Event date.
	Price float64   `gorm:"type:decimal(10,2);not null"` // Ticket price at voucher creation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// BeforeCreate assigns a UUID when the ID is not provided by the caller.
func (e *Event) BeforeCreate(*gorm.DB) error {
	if strings.TrimSpace(e.ID) == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
