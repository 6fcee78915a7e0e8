package consistency

import (
	"fmt"

	"github.com/mystery-events/voucherd/internal/models"
)

// ViolationCode identifies a single invariant violation.
type ViolationCode string

// Violation codes, in the order the validator reports them.
const (
	// CodeMissingSessionRef means the checkout session reference is empty.
	CodeMissingSessionRef ViolationCode = "missing_session_ref"
	// CodeMissingPaymentRef means a completed payment has no payment reference.
	CodeMissingPaymentRef ViolationCode = "missing_payment_ref"
	// CodeStalePendingStatus means payment completed but the voucher is still pending.
	CodeStalePendingStatus ViolationCode = "stale_pending_status"
	// CodeMissingPaidAt means a completed payment has no paid timestamp.
	CodeMissingPaidAt ViolationCode = "missing_paid_at"
	// CodeActiveWithoutPayment means the voucher is active without a completed payment.
	CodeActiveWithoutPayment ViolationCode = "active_without_payment"
	// CodeBalanceExceedsOriginal means the remaining balance exceeds the original amount.
	CodeBalanceExceedsOriginal ViolationCode = "balance_exceeds_original"
)

// Violation describes one invariant breach on a voucher snapshot.
type Violation struct {
	Code       ViolationCode `json:"code"`
	Detail     string        `json:"detail"`
	Repairable bool          `json:"repairable"` // Whether Repairer applies a deterministic fix.
}

// Validate checks a voucher snapshot against the persisted-state invariants.
//
// It never mutates the snapshot and returns violations in a fixed order, so
// repeated calls over the same snapshot yield identical reports.
func Validate(v *models.Voucher) []Violation {
	if v == nil {
		return nil
	}

	var out []Violation

	if v.StripeSessionID == "" {
		out = append(out, Violation{
			Code:       CodeMissingSessionRef,
			Detail:     "checkout session reference is empty; cannot be derived locally",
			Repairable: false,
		})
	}

	if v.PaymentStatus == models.PaymentStatusCompleted {
		if v.StripePaymentID == nil || *v.StripePaymentID == "" {
			out = append(out, Violation{
				Code:       CodeMissingPaymentRef,
				Detail:     "payment completed but payment reference is missing",
				Repairable: false,
			})
		}
		if v.Status == models.VoucherStatusPending {
			out = append(out, Violation{
				Code:       CodeStalePendingStatus,
				Detail:     "payment completed but voucher status is still pending",
				Repairable: true,
			})
		}
		if v.PaidAt == nil {
			out = append(out, Violation{
				Code:       CodeMissingPaidAt,
				Detail:     "payment completed but paid_at is not set",
				Repairable: true,
			})
		}
	}

	if v.Status == models.VoucherStatusActive && v.PaymentStatus != models.PaymentStatusCompleted {
		out = append(out, Violation{
			Code:       CodeActiveWithoutPayment,
			Detail:     fmt.Sprintf("voucher is active but payment status is %s", v.PaymentStatus),
			Repairable: false,
		})
	}

	if v.CurrentBalance > v.OriginalAmount {
		out = append(out, Violation{
			Code:       CodeBalanceExceedsOriginal,
			Detail:     fmt.Sprintf("current balance %.2f exceeds original amount %.2f", v.CurrentBalance, v.OriginalAmount),
			Repairable: false,
		})
	}

	return out
}

// IsConsistent reports whether a snapshot has no violations.
func IsConsistent(v *models.Voucher) bool {
	return len(Validate(v)) == 0
}
