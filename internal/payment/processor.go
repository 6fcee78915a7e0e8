package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mystery-events/voucherd/internal/models"
)

// Processor errors.
var (
	// ErrVoucherNotFound indicates no voucher matches the given reference.
	ErrVoucherNotFound = errors.New("payment: voucher not found")
	// ErrIntegrity indicates more than one voucher claims the same session
	// reference. The store is corrupt; the signal must not be applied.
	ErrIntegrity = errors.New("payment: multiple vouchers share one session reference")
)

// Outcome reports how a completion signal was absorbed.
type Outcome struct {
	VoucherID string `json:"voucher_id"`
	Code      string `json:"code"`
	// Transitioned is true when this call performed the pending-to-completed
	// edge. False means the voucher was already completed and the signal was
	// a duplicate.
	Transitioned bool `json:"transitioned"`
}

// FulfillFunc triggers delivery for a paid voucher. Wired to the
// fulfillment pipeline by the caller; the indirection keeps the packages
// acyclic.
type FulfillFunc func(ctx context.Context, voucherID string) error

// Processor applies payment-completion signals exactly once per voucher.
type Processor struct {
	db        *gorm.DB
	fulfiller FulfillFunc
	now       func() time.Time
}

// NewProcessor wires a processor over the store and the fulfillment trigger.
// The fulfiller may be nil; completion then only transitions state.
func NewProcessor(db *gorm.DB, fulfiller FulfillFunc) *Processor {
	return &Processor{
		db:        db,
		fulfiller: fulfiller,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CompleteBySession applies a completion signal addressed by checkout
// session reference. Duplicate signals are absorbed as no-op successes.
func (p *Processor) CompleteBySession(ctx context.Context, sessionRef, paymentRef string) (Outcome, error) {
	if sessionRef == "" {
		return Outcome{}, fmt.Errorf("payment: empty session reference: %w", ErrVoucherNotFound)
	}

	var vouchers []models.Voucher
	if errFind := p.db.WithContext(ctx).
		Where("stripe_session_id = ?", sessionRef).
		Find(&vouchers).Error; errFind != nil {
		return Outcome{}, errFind
	}
	switch len(vouchers) {
	case 0:
		return Outcome{}, ErrVoucherNotFound
	case 1:
	default:
		log.Errorf("payment: session %s matches %d vouchers", sessionRef, len(vouchers))
		return Outcome{}, ErrIntegrity
	}

	outcome, errComplete := p.complete(ctx, &vouchers[0], paymentRef)
	if errComplete != nil {
		return Outcome{}, errComplete
	}
	// Delivery is scheduled on the transition edge only. Duplicate and
	// racing signals lose the guarded UPDATE and must not reach the
	// pipeline; a voucher stuck between transition and delivery is
	// recovered through the replay path, not through redelivery.
	if outcome.Transitioned {
		p.fulfill(ctx, outcome.VoucherID, outcome.Code)
	}
	return outcome, nil
}

// CompleteByID applies a completion signal addressed by voucher ID. This is
// the operator replay path; it runs the same transition and always schedules
// the idempotent fulfillment pass, so a voucher stuck after a crash between
// transition and delivery still gets its emails.
func (p *Processor) CompleteByID(ctx context.Context, voucherID, paymentRef string) (Outcome, error) {
	var voucher models.Voucher
	if errFind := p.db.WithContext(ctx).First(&voucher, "id = ?", voucherID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return Outcome{}, ErrVoucherNotFound
		}
		return Outcome{}, errFind
	}
	outcome, errComplete := p.complete(ctx, &voucher, paymentRef)
	if errComplete != nil {
		return Outcome{}, errComplete
	}
	p.fulfill(ctx, outcome.VoucherID, outcome.Code)
	return outcome, nil
}

// complete performs the guarded transition.
//
// The UPDATE is conditioned on the current payment status, so two racing
// signals resolve at the database: exactly one observes RowsAffected == 1
// and owns the edge, the other degrades to a duplicate.
func (p *Processor) complete(ctx context.Context, voucher *models.Voucher, paymentRef string) (Outcome, error) {
	outcome := Outcome{VoucherID: voucher.ID, Code: voucher.Code}

	now := p.now()
	updates := map[string]any{
		"payment_status": models.PaymentStatusCompleted,
		"status":         models.VoucherStatusActive,
		"paid_at":        now,
	}
	if paymentRef != "" {
		updates["stripe_payment_id"] = paymentRef
	}

	res := p.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("id = ? AND payment_status <> ?", voucher.ID, models.PaymentStatusCompleted).
		Updates(updates)
	if res.Error != nil {
		return Outcome{}, res.Error
	}
	outcome.Transitioned = res.RowsAffected == 1

	if outcome.Transitioned {
		log.Infof("payment: voucher %s completed (payment %s)", voucher.Code, paymentRef)
	} else {
		log.Debugf("payment: voucher %s already completed, duplicate signal absorbed", voucher.Code)
	}
	return outcome, nil
}

// fulfill runs the delivery pipeline.
func (p *Processor) fulfill(ctx context.Context, voucherID, code string) {
	if p.fulfiller == nil {
		return
	}
	if errRun := p.fulfiller(ctx, voucherID); errRun != nil {
		// Delivery failures never fail the completion: the payment state is
		// already durable and the signal must be acknowledged upstream.
		log.Warnf("payment: fulfillment for voucher %s failed: %v", code, errRun)
	}
}
