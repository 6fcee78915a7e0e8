package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mystery-events/voucherd/internal/util"
)

// VoucherType determines how a voucher's balance is interpreted.
type VoucherType string

// VoucherType constants define the supported voucher kinds.
const (
	// VoucherTypeAmount is a fixed monetary value voucher.
	VoucherTypeAmount VoucherType = "amount"
	// VoucherTypeEvent entitles the holder to tickets for a bound event.
	VoucherTypeEvent VoucherType = "event"
	// VoucherTypePack entitles the holder to a ticket pack.
	VoucherTypePack VoucherType = "pack"
)

// PaymentStatus mirrors the payment gateway's authoritative state.
type PaymentStatus string

// PaymentStatus constants.
const (
	// PaymentStatusPending means no completion signal has been applied yet.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted means the payment was captured.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed means the gateway reported a failed payment.
	PaymentStatusFailed PaymentStatus = "failed"
)

// VoucherStatus reflects a voucher's usability in the rest of the system.
type VoucherStatus string

// VoucherStatus constants.
const (
	// VoucherStatusPending means the voucher is awaiting payment.
	VoucherStatusPending VoucherStatus = "pending"
	// VoucherStatusActive means the voucher is redeemable.
	VoucherStatusActive VoucherStatus = "active"
	// VoucherStatusRedeemed means the voucher balance is spent.
	VoucherStatusRedeemed VoucherStatus = "redeemed"
	// VoucherStatusCancelled means the voucher was cancelled.
	VoucherStatusCancelled VoucherStatus = "cancelled"
	// VoucherStatusExpired means the voucher passed its expiry date.
	VoucherStatusExpired VoucherStatus = "expired"
)

// Voucher represents a value-bearing gift voucher bound to a payment session.
type Voucher struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key, assigned at creation.

	Code string      `gorm:"type:varchar(32);not null;uniqueIndex"` // Human-presentable unique token.
	Type VoucherType `gorm:"type:varchar(16);not null"`             // amount, event or pack.

	OriginalAmount float64 `gorm:"type:decimal(10,2);not null"` // Value at purchase time.
	CurrentBalance float64 `gorm:"type:decimal(10,2);not null"` // Remaining value, never above OriginalAmount.

	EventID        *string `gorm:"type:varchar(36);index"` // Bound event for event-type vouchers.
	TicketQuantity *int    // Ticket entitlement for event/pack vouchers.
	Event          *Event  `gorm:"foreignKey:EventID"` // Bound event record.

	PurchaserName   string  `gorm:"type:text;not null"` // Buyer display name.
	PurchaserEmail  string  `gorm:"type:text;not null"` // Buyer address for the confirmation email.
	RecipientName   *string `gorm:"type:text"`          // Optional gift recipient name.
	RecipientEmail  *string `gorm:"type:text"`          // Optional gift recipient address.
	PersonalMessage *string `gorm:"type:text"`          // Optional message printed on the voucher.
	TemplateUsed    string  `gorm:"type:varchar(64)"`   // Presentation template identifier.

	ExpiryDate            time.Time  `gorm:"not null"` // Redemption deadline, immutable.
	ScheduledDeliveryDate *time.Time // Defers recipient delivery until this date when set.

	PaymentStatus PaymentStatus `gorm:"type:varchar(16);not null;default:'pending';index"` // Gateway payment state.
	Status        VoucherStatus `gorm:"type:varchar(16);not null;default:'pending';index"` // Voucher lifecycle state.

	StripeSessionID string  `gorm:"type:varchar(255);not null;uniqueIndex"` // Checkout session reference, never empty.
	StripePaymentID *string `gorm:"type:varchar(255)"`                      // Captured payment reference, set on completion.

	PaidAt *time.Time // Set exactly once when payment completes.

	PurchaserEmailSent   bool       `gorm:"not null;default:false"` // Purchaser confirmation delivered.
	PurchaserEmailSentAt *time.Time // Delivery time of the purchaser confirmation.
	RecipientEmailSent   bool       `gorm:"not null;default:false"` // Recipient gift email delivered.
	RecipientEmailSentAt *time.Time // Delivery time of the recipient gift email.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`       // Last update timestamp.
}

// BeforeCreate assigns the UUID and voucher code when not provided.
func (v *Voucher) BeforeCreate(*gorm.DB) error {
	if strings.TrimSpace(v.ID) == "" {
		v.ID = uuid.NewString()
	}
	if strings.TrimSpace(v.Code) == "" {
		code, errCode := util.GenerateVoucherCode()
		if errCode != nil {
			return errCode
		}
		v.Code = code
	}
	return nil
}
