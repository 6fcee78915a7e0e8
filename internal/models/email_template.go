package models

import "time"

// EmailTemplate stores a named subject/body pair with placeholder markers.
//
// Bodies may contain {{name}} placeholders and {{#name}}...{{/name}}
// conditional blocks; substitution happens in the fulfillment package.
type EmailTemplate struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string `gorm:"type:varchar(64);not null;uniqueIndex"` // Template lookup name.
	Subject  string `gorm:"type:text;not null"`                    // Subject line with placeholders.
	BodyHTML string `gorm:"type:text;not null"`                    // HTML body with placeholders.

	Active bool `gorm:"not null;default:true"` // Only active templates are resolved.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
