package render

import (
	"time"

	"github.com/mystery-events/voucherd/internal/models"
)

// Snapshot carries the voucher fields the renderer needs.
//
// It is a plain value type: two renders of equal snapshots must produce
// identical documents.
type Snapshot struct {
	ID              string
	Code            string
	Type            models.VoucherType
	OriginalAmount  float64
	CurrentBalance  float64
	TicketQuantity  int
	EventTitle      string
	PurchaserName   string
	RecipientName   string
	PersonalMessage string
	ExpiryDate      time.Time
	PurchaseDate    time.Time
	VerificationURL string
}

// Renderer produces the voucher artifact for a snapshot and template.
type Renderer interface {
	Render(snapshot Snapshot, templateID string) ([]byte, error)
}
