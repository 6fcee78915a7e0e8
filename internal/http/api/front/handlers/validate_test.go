package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mystery-events/voucherd/internal/models"
)

func newValidateRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewValidateHandler(db)
	router := gin.New()
	router.GET("/validate/:code", handler.Check)
	return router
}

func getValidate(router *gin.Engine, code string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/validate/"+code, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestValidateActiveVoucher(t *testing.T) {
	db := setupFrontDB(t)
	voucher := seedFrontVoucher(t, db, "sess_v", models.PaymentStatusCompleted)

	w := getValidate(newValidateRouter(db), voucher.Code)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Valid          bool    `json:"valid"`
		Code           string  `json:"code"`
		CurrentBalance float64 `json:"current_balance"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if !resp.Valid {
		t.Fatal("active paid voucher must validate")
	}
	if resp.Code != voucher.Code {
		t.Fatalf("code = %s", resp.Code)
	}
	if resp.CurrentBalance != voucher.CurrentBalance {
		t.Fatalf("balance = %f", resp.CurrentBalance)
	}
}

func TestValidatePendingVoucherInvalid(t *testing.T) {
	db := setupFrontDB(t)
	voucher := seedFrontVoucher(t, db, "sess_v", models.PaymentStatusPending)

	w := getValidate(newValidateRouter(db), voucher.Code)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Valid bool `json:"valid"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Valid {
		t.Fatal("unpaid voucher must not validate")
	}
}

func TestValidateExpiredVoucherInvalid(t *testing.T) {
	db := setupFrontDB(t)
	voucher := seedFrontVoucher(t, db, "sess_v", models.PaymentStatusCompleted)
	if errUpdate := db.Model(&models.Voucher{}).
		Where("id = ?", voucher.ID).
		Update("expiry_date", time.Now().UTC().AddDate(0, 0, -1)).Error; errUpdate != nil {
		t.Fatalf("expire voucher: %v", errUpdate)
	}

	w := getValidate(newValidateRouter(db), voucher.Code)
	var resp struct {
		Valid bool `json:"valid"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Valid {
		t.Fatal("expired voucher must not validate")
	}
}

func TestValidateUnknownCode(t *testing.T) {
	db := setupFrontDB(t)
	w := getValidate(newValidateRouter(db), "GIFT-NOPE")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}
