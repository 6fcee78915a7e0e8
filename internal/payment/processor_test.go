package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/mystery-events/voucherd/internal/models"
)

func setupProcessorDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:processor_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.Voucher{}, &models.Event{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func seedPendingVoucher(t *testing.T, db *gorm.DB, sessionRef string) *models.Voucher {
	t.Helper()
	voucher := &models.Voucher{
		Code:            fmt.Sprintf("GIFT-%d", time.Now().UnixNano()),
		Type:            models.VoucherTypeAmount,
		OriginalAmount:  50,
		CurrentBalance:  50,
		PurchaserName:   "Ana",
		PurchaserEmail:  "ana@example.com",
		ExpiryDate:      time.Now().UTC().AddDate(1, 0, 0),
		PaymentStatus:   models.PaymentStatusPending,
		Status:          models.VoucherStatusPending,
		StripeSessionID: sessionRef,
	}
	if errCreate := db.Create(voucher).Error; errCreate != nil {
		t.Fatalf("create voucher: %v", errCreate)
	}
	return voucher
}

type fulfillRecorder struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (f *fulfillRecorder) fulfill(_ context.Context, voucherID string) error {
	f.mu.Lock()
	f.ids = append(f.ids, voucherID)
	f.mu.Unlock()
	return f.err
}

func (f *fulfillRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}

func TestCompleteBySessionTransitions(t *testing.T) {
	db := setupProcessorDB(t)
	voucher := seedPendingVoucher(t, db, "sess_a")

	recorder := &fulfillRecorder{}
	processor := NewProcessor(db, recorder.fulfill)
	outcome, errComplete := processor.CompleteBySession(context.Background(), "sess_a", "pay_123")
	if errComplete != nil {
		t.Fatalf("complete: %v", errComplete)
	}
	if !outcome.Transitioned {
		t.Fatal("first signal must own the transition")
	}
	if outcome.VoucherID != voucher.ID {
		t.Fatalf("voucher id = %s", outcome.VoucherID)
	}

	var reloaded models.Voucher
	if errFind := db.First(&reloaded, "id = ?", voucher.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.PaymentStatus != models.PaymentStatusCompleted {
		t.Fatalf("payment status = %s", reloaded.PaymentStatus)
	}
	if reloaded.Status != models.VoucherStatusActive {
		t.Fatalf("status = %s", reloaded.Status)
	}
	if reloaded.PaidAt == nil {
		t.Fatal("paid_at not set")
	}
	if reloaded.StripePaymentID == nil || *reloaded.StripePaymentID != "pay_123" {
		t.Fatal("payment reference not recorded")
	}
	if len(recorder.ids) != 1 || recorder.ids[0] != voucher.ID {
		t.Fatalf("fulfillment runs = %v", recorder.ids)
	}
}

func TestCompleteBySessionDuplicateIsNoOp(t *testing.T) {
	db := setupProcessorDB(t)
	voucher := seedPendingVoucher(t, db, "sess_a")

	recorder := &fulfillRecorder{}
	processor := NewProcessor(db, recorder.fulfill)
	if _, errFirst := processor.CompleteBySession(context.Background(), "sess_a", "pay_123"); errFirst != nil {
		t.Fatalf("first: %v", errFirst)
	}

	var afterFirst models.Voucher
	if errFind := db.First(&afterFirst, "id = ?", voucher.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}

	outcome, errSecond := processor.CompleteBySession(context.Background(), "sess_a", "pay_other")
	if errSecond != nil {
		t.Fatalf("duplicate signal must succeed: %v", errSecond)
	}
	if outcome.Transitioned {
		t.Fatal("duplicate signal must not own the transition")
	}

	var afterSecond models.Voucher
	if errFind := db.First(&afterSecond, "id = ?", voucher.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if afterSecond.StripePaymentID == nil || *afterSecond.StripePaymentID != "pay_123" {
		t.Fatal("duplicate must not overwrite the payment reference")
	}
	if !afterSecond.PaidAt.Equal(*afterFirst.PaidAt) {
		t.Fatal("duplicate must not move paid_at")
	}
	if got := recorder.count(); got != 1 {
		t.Fatalf("fulfillment runs = %d, only the transition edge triggers delivery", got)
	}
}

func TestCompleteBySessionRedeliveredSignalTriggersOnce(t *testing.T) {
	db := setupProcessorDB(t)
	seedPendingVoucher(t, db, "sess_a")

	recorder := &fulfillRecorder{}
	processor := NewProcessor(db, recorder.fulfill)
	for i := 0; i < 4; i++ {
		if _, errComplete := processor.CompleteBySession(context.Background(), "sess_a", "pay_1"); errComplete != nil {
			t.Fatalf("signal %d: %v", i, errComplete)
		}
	}
	if got := recorder.count(); got != 1 {
		t.Fatalf("fulfillment runs = %d, want exactly 1 across redeliveries", got)
	}
}

func TestCompleteBySessionConcurrentDuplicates(t *testing.T) {
	db := setupProcessorDB(t)
	voucher := seedPendingVoucher(t, db, "sess_a")
	sqlDB, errDB := db.DB()
	if errDB != nil {
		t.Fatalf("db handle: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)

	recorder := &fulfillRecorder{}
	processor := NewProcessor(db, recorder.fulfill)

	const racers = 4
	var wg sync.WaitGroup
	errs := make(chan error, racers)
	transitions := make(chan bool, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, errComplete := processor.CompleteBySession(context.Background(), "sess_a", "pay_1")
			errs <- errComplete
			transitions <- outcome.Transitioned
		}()
	}
	wg.Wait()
	close(errs)
	close(transitions)

	for errComplete := range errs {
		if errComplete != nil {
			t.Fatalf("racing signal failed: %v", errComplete)
		}
	}
	owned := 0
	for transitioned := range transitions {
		if transitioned {
			owned++
		}
	}
	if owned != 1 {
		t.Fatalf("transition owned by %d racers, want exactly 1", owned)
	}
	if got := recorder.count(); got != 1 {
		t.Fatalf("fulfillment runs = %d, want exactly 1 for voucher %s", got, voucher.Code)
	}
}

func TestCompleteBySessionUnknownSession(t *testing.T) {
	db := setupProcessorDB(t)
	processor := NewProcessor(db, nil)
	if _, errComplete := processor.CompleteBySession(context.Background(), "sess_missing", "pay_x"); !errors.Is(errComplete, ErrVoucherNotFound) {
		t.Fatalf("err = %v", errComplete)
	}
}

func TestCompleteBySessionEmptyRef(t *testing.T) {
	db := setupProcessorDB(t)
	processor := NewProcessor(db, nil)
	if _, errComplete := processor.CompleteBySession(context.Background(), "", "pay_x"); !errors.Is(errComplete, ErrVoucherNotFound) {
		t.Fatalf("err = %v", errComplete)
	}
}

func TestCompleteBySessionIntegrityFault(t *testing.T) {
	db := setupProcessorDB(t)
	seedPendingVoucher(t, db, "sess_dup")
	// Legacy stores predate the unique session index; reproduce that shape.
	if errDrop := db.Exec("DROP INDEX idx_vouchers_stripe_session_id").Error; errDrop != nil {
		t.Fatalf("drop index: %v", errDrop)
	}
	seedPendingVoucher(t, db, "sess_dup")

	recorder := &fulfillRecorder{}
	processor := NewProcessor(db, recorder.fulfill)
	if _, errComplete := processor.CompleteBySession(context.Background(), "sess_dup", "pay_x"); !errors.Is(errComplete, ErrIntegrity) {
		t.Fatalf("err = %v", errComplete)
	}
	if len(recorder.ids) != 0 {
		t.Fatal("integrity fault must not trigger fulfillment")
	}

	var pendingCount int64
	if errCount := db.Model(&models.Voucher{}).
		Where("stripe_session_id = ? AND payment_status = ?", "sess_dup", models.PaymentStatusPending).
		Count(&pendingCount).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if pendingCount != 2 {
		t.Fatal("integrity fault must not mutate any voucher")
	}
}

func TestCompleteByIDReplayForStuckVoucher(t *testing.T) {
	db := setupProcessorDB(t)
	voucher := seedPendingVoucher(t, db, "sess_a")

	// Simulate a crash after the transition and before delivery.
	paidAt := time.Now().UTC()
	if errUpdate := db.Model(&models.Voucher{}).
		Where("id = ?", voucher.ID).
		Updates(map[string]any{
			"payment_status": models.PaymentStatusCompleted,
			"status":         models.VoucherStatusActive,
			"paid_at":        paidAt,
		}).Error; errUpdate != nil {
		t.Fatalf("update: %v", errUpdate)
	}

	recorder := &fulfillRecorder{}
	processor := NewProcessor(db, recorder.fulfill)
	outcome, errReplay := processor.CompleteByID(context.Background(), voucher.ID, "")
	if errReplay != nil {
		t.Fatalf("replay: %v", errReplay)
	}
	if outcome.Transitioned {
		t.Fatal("replay of a completed voucher must not re-transition")
	}
	if len(recorder.ids) != 1 {
		t.Fatal("replay must trigger the fulfillment pass")
	}
}

func TestCompleteByIDUnknownVoucher(t *testing.T) {
	db := setupProcessorDB(t)
	processor := NewProcessor(db, nil)
	if _, errComplete := processor.CompleteByID(context.Background(), "missing", ""); !errors.Is(errComplete, ErrVoucherNotFound) {
		t.Fatalf("err = %v", errComplete)
	}
}

func TestFulfillmentFailureDoesNotFailCompletion(t *testing.T) {
	db := setupProcessorDB(t)
	voucher := seedPendingVoucher(t, db, "sess_a")

	recorder := &fulfillRecorder{err: errors.New("smtp down")}
	processor := NewProcessor(db, recorder.fulfill)
	outcome, errComplete := processor.CompleteBySession(context.Background(), "sess_a", "pay_123")
	if errComplete != nil {
		t.Fatalf("complete: %v", errComplete)
	}
	if !outcome.Transitioned {
		t.Fatal("transition must survive a delivery failure")
	}

	var reloaded models.Voucher
	if errFind := db.First(&reloaded, "id = ?", voucher.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.PaymentStatus != models.PaymentStatusCompleted {
		t.Fatalf("payment status = %s", reloaded.PaymentStatus)
	}
}
