package consistency

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mystery-events/voucherd/internal/models"
	"gorm.io/gorm"
)

func setupRepairDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repair_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.Voucher{}, &models.Event{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func seedVoucher(t *testing.T, db *gorm.DB, mutate func(*models.Voucher)) *models.Voucher {
	t.Helper()
	paymentID := "pay_1"
	paidAt := time.Now().UTC()
	voucher := &models.Voucher{
		Code:            fmt.Sprintf("GIFT-%d", time.Now().UnixNano()),
		Type:            models.VoucherTypeAmount,
		OriginalAmount:  100,
		CurrentBalance:  100,
		PurchaserName:   "Ana",
		PurchaserEmail:  "ana@example.com",
		ExpiryDate:      paidAt.AddDate(1, 0, 0),
		PaymentStatus:   models.PaymentStatusCompleted,
		Status:          models.VoucherStatusActive,
		StripeSessionID: fmt.Sprintf("sess_%d", time.Now().UnixNano()),
		StripePaymentID: &paymentID,
		PaidAt:          &paidAt,
	}
	if mutate != nil {
		mutate(voucher)
	}
	if errCreate := db.Create(voucher).Error; errCreate != nil {
		t.Fatalf("create voucher: %v", errCreate)
	}
	return voucher
}

func TestRepairOneFixesStalePendingStatus(t *testing.T) {
	db := setupRepairDB(t)
	voucher := seedVoucher(t, db, func(v *models.Voucher) {
		v.Status = models.VoucherStatusPending
	})

	repairer := NewRepairer(db)
	detail, errRepair := repairer.RepairOne(context.Background(), voucher.ID)
	if errRepair != nil {
		t.Fatalf("repair: %v", errRepair)
	}
	if detail.Action != ActionFixed {
		t.Fatalf("action = %s", detail.Action)
	}

	var reloaded models.Voucher
	if errFind := db.First(&reloaded, "id = ?", voucher.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.Status != models.VoucherStatusActive {
		t.Fatalf("status = %s", reloaded.Status)
	}

	// Re-check must come back clean.
	check, errCheck := repairer.CheckOne(context.Background(), voucher.ID)
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if check.Action != ActionClean {
		t.Fatalf("post-repair action = %s violations = %v", check.Action, check.Violations)
	}
}

func TestRepairOneBackfillsPaidAt(t *testing.T) {
	db := setupRepairDB(t)
	voucher := seedVoucher(t, db, func(v *models.Voucher) {
		v.PaidAt = nil
	})

	repairer := NewRepairer(db)
	fixedAt := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	repairer.now = func() time.Time { return fixedAt }

	detail, errRepair := repairer.RepairOne(context.Background(), voucher.ID)
	if errRepair != nil {
		t.Fatalf("repair: %v", errRepair)
	}
	if detail.Action != ActionFixed {
		t.Fatalf("action = %s", detail.Action)
	}

	var reloaded models.Voucher
	if errFind := db.First(&reloaded, "id = ?", voucher.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.PaidAt == nil || !reloaded.PaidAt.Equal(fixedAt) {
		t.Fatalf("paid_at = %v", reloaded.PaidAt)
	}
}

func TestRepairSkipsMissingSessionRefWithoutMutation(t *testing.T) {
	db := setupRepairDB(t)
	voucher := seedVoucher(t, db, func(v *models.Voucher) {
		v.StripeSessionID = ""
		v.Status = models.VoucherStatusPending // would otherwise be fixable
	})

	repairer := NewRepairer(db)
	detail, errRepair := repairer.RepairOne(context.Background(), voucher.ID)
	if errRepair != nil {
		t.Fatalf("repair: %v", errRepair)
	}
	if detail.Action != ActionUnrepairable {
		t.Fatalf("action = %s", detail.Action)
	}

	var reloaded models.Voucher
	if errFind := db.First(&reloaded, "id = ?", voucher.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.Status != models.VoucherStatusPending {
		t.Fatalf("voucher mutated despite unrepairable state: status = %s", reloaded.Status)
	}
}

func TestRepairScanAggregatesCounts(t *testing.T) {
	db := setupRepairDB(t)
	seedVoucher(t, db, nil) // clean
	seedVoucher(t, db, func(v *models.Voucher) { v.Status = models.VoucherStatusPending })
	seedVoucher(t, db, func(v *models.Voucher) { v.StripeSessionID = "" })

	repairer := NewRepairer(db)
	report, errRepair := repairer.Repair(context.Background(), 50)
	if errRepair != nil {
		t.Fatalf("repair: %v", errRepair)
	}
	if report.Checked != 3 {
		t.Fatalf("checked = %d", report.Checked)
	}
	if report.Fixed != 1 {
		t.Fatalf("fixed = %d", report.Fixed)
	}
	if report.Unrepairable != 1 {
		t.Fatalf("unrepairable = %d", report.Unrepairable)
	}
	if report.Failed != 0 {
		t.Fatalf("failed = %d", report.Failed)
	}

	// Second pass finds nothing left to fix.
	again, errAgain := repairer.Repair(context.Background(), 50)
	if errAgain != nil {
		t.Fatalf("repair again: %v", errAgain)
	}
	if again.Fixed != 0 {
		t.Fatalf("second pass fixed = %d", again.Fixed)
	}
	if again.Unrepairable != 1 {
		t.Fatalf("second pass unrepairable = %d", again.Unrepairable)
	}
}

func TestCheckDoesNotMutate(t *testing.T) {
	db := setupRepairDB(t)
	voucher := seedVoucher(t, db, func(v *models.Voucher) {
		v.Status = models.VoucherStatusPending
	})

	repairer := NewRepairer(db)
	report, errCheck := repairer.Check(context.Background(), 50)
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if len(report.Details) != 1 {
		t.Fatalf("details = %v", report.Details)
	}

	var reloaded models.Voucher
	if errFind := db.First(&reloaded, "id = ?", voucher.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.Status != models.VoucherStatusPending {
		t.Fatalf("check mutated voucher: status = %s", reloaded.Status)
	}
}
