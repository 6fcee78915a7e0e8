package consistency

import (
	"context"
	"errors"
	"time"

	"github.com/mystery-events/voucherd/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrVoucherNotFound indicates no voucher matches the requested ID.
var ErrVoucherNotFound = errors.New("consistency: voucher not found")

// Action describes what the repairer did with one voucher.
type Action string

// Repair actions.
const (
	// ActionClean means no violations were found.
	ActionClean Action = "clean"
	// ActionFixed means deterministic corrections were applied.
	ActionFixed Action = "fixed"
	// ActionUnrepairable means the voucher needs manual intervention.
	ActionUnrepairable Action = "unrepairable"
	// ActionFailed means applying a correction hit a storage error.
	ActionFailed Action = "failed"
)

// VoucherReport is the per-voucher outcome of a check or repair pass.
type VoucherReport struct {
	VoucherID  string      `json:"voucher_id"`
	Code       string      `json:"code"`
	Violations []Violation `json:"violations,omitempty"`
	Action     Action      `json:"action"`
	Error      string      `json:"error,omitempty"`
}

// Report aggregates a scan over many vouchers.
type Report struct {
	Checked      int             `json:"checked"`
	Fixed        int             `json:"fixed"`
	Failed       int             `json:"failed"`
	Unrepairable int             `json:"unrepairable"`
	Details      []VoucherReport `json:"details,omitempty"`
}

// Repairer applies bounded, deterministic corrections to inconsistent vouchers.
type Repairer struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepairer constructs a Repairer.
func NewRepairer(db *gorm.DB) *Repairer {
	return &Repairer{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// CheckOne validates a single voucher without mutating anything.
func (r *Repairer) CheckOne(ctx context.Context, voucherID string) (VoucherReport, error) {
	var voucher models.Voucher
	if errFind := r.db.WithContext(ctx).First(&voucher, "id = ?", voucherID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return VoucherReport{}, ErrVoucherNotFound
		}
		return VoucherReport{}, errFind
	}
	return reportFor(&voucher), nil
}

// Check validates the most recent window of vouchers without mutating anything.
func (r *Repairer) Check(ctx context.Context, window int) (Report, error) {
	vouchers, errLoad := r.recentVouchers(ctx, window)
	if errLoad != nil {
		return Report{}, errLoad
	}

	report := Report{Checked: len(vouchers)}
	for i := range vouchers {
		detail := reportFor(&vouchers[i])
		if detail.Action == ActionClean {
			continue
		}
		if hasUnrepairable(detail.Violations) {
			report.Unrepairable++
		}
		report.Details = append(report.Details, detail)
	}
	return report, nil
}

// RepairOne validates one voucher and applies the deterministic corrections.
//
// A voucher with a missing session reference is never mutated; the correct
// value cannot be derived locally, so it is reported for manual intervention.
func (r *Repairer) RepairOne(ctx context.Context, voucherID string) (VoucherReport, error) {
	var voucher models.Voucher
	if errFind := r.db.WithContext(ctx).First(&voucher, "id = ?", voucherID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return VoucherReport{}, ErrVoucherNotFound
		}
		return VoucherReport{}, errFind
	}
	return r.repairVoucher(ctx, &voucher), nil
}

// Repair scans the most recent window of vouchers and fixes what it safely can.
//
// Individual repair failures are isolated: the scan continues and the failure
// is counted, never propagated.
func (r *Repairer) Repair(ctx context.Context, window int) (Report, error) {
	vouchers, errLoad := r.recentVouchers(ctx, window)
	if errLoad != nil {
		return Report{}, errLoad
	}

	report := Report{Checked: len(vouchers)}
	for i := range vouchers {
		detail := r.repairVoucher(ctx, &vouchers[i])
		switch detail.Action {
		case ActionClean:
			continue
		case ActionFixed:
			report.Fixed++
		case ActionFailed:
			report.Failed++
		case ActionUnrepairable:
			report.Unrepairable++
		}
		report.Details = append(report.Details, detail)
	}
	return report, nil
}

func (r *Repairer) recentVouchers(ctx context.Context, window int) ([]models.Voucher, error) {
	if window <= 0 {
		window = 50
	}
	var vouchers []models.Voucher
	if errFind := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(window).
		Find(&vouchers).Error; errFind != nil {
		return nil, errFind
	}
	return vouchers, nil
}

func (r *Repairer) repairVoucher(ctx context.Context, voucher *models.Voucher) VoucherReport {
	detail := reportFor(voucher)
	if detail.Action == ActionClean {
		return detail
	}

	if hasCode(detail.Violations, CodeMissingSessionRef) {
		detail.Action = ActionUnrepairable
		log.Warnf("consistency: voucher %s has no session reference, manual intervention required", voucher.Code)
		return detail
	}

	updates := map[string]any{}
	for _, violation := range detail.Violations {
		switch violation.Code {
		case CodeStalePendingStatus:
			updates["status"] = models.VoucherStatusActive
		case CodeMissingPaidAt:
			// Best-effort backfill; the original timestamp is unrecoverable.
			updates["paid_at"] = r.now()
		}
	}

	if len(updates) == 0 {
		detail.Action = ActionUnrepairable
		return detail
	}

	if errUpdate := r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("id = ?", voucher.ID).
		Updates(updates).Error; errUpdate != nil {
		detail.Action = ActionFailed
		detail.Error = errUpdate.Error()
		log.Warnf("consistency: repair of voucher %s failed: %v", voucher.Code, errUpdate)
		return detail
	}

	detail.Action = ActionFixed
	log.Infof("consistency: repaired voucher %s (%d violation(s))", voucher.Code, len(detail.Violations))
	return detail
}

func reportFor(voucher *models.Voucher) VoucherReport {
	detail := VoucherReport{
		VoucherID:  voucher.ID,
		Code:       voucher.Code,
		Violations: Validate(voucher),
	}
	if len(detail.Violations) == 0 {
		detail.Action = ActionClean
	} else {
		detail.Action = ActionUnrepairable
	}
	return detail
}

func hasCode(violations []Violation, code ViolationCode) bool {
	for _, v := range violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

func hasUnrepairable(violations []Violation) bool {
	for _, v := range violations {
		if !v.Repairable {
			return true
		}
	}
	return false
}
