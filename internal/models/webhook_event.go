package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent archives inbound gateway notifications for diagnostics.
//
// The provider event ID is recorded for duplicate tracing, but processing
// idempotency is enforced by voucher state, not by this table.
type WebhookEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Provider        string `gorm:"type:varchar(32);not null;index:idx_webhook_events_provider_event,priority:1"`  // Gateway name, e.g. stripe.
	ProviderEventID string `gorm:"type:varchar(255);not null;index:idx_webhook_events_provider_event,priority:2"` // Gateway-assigned event identifier.
	EventType       string `gorm:"type:varchar(100);not null;index"`                                              // Gateway event type string.

	Payload datatypes.JSON `gorm:"type:jsonb"` // Raw event payload.

	SessionRef string `gorm:"type:varchar(255);index"` // Checkout session the event referenced, when present.

	ProcessedAt     *time.Time // When processing finished, success or not.
	ProcessingError string     `gorm:"type:text"` // Error detail for failed processing.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Receipt timestamp.
}
