package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mystery-events/voucherd/internal/consistency"
	"github.com/mystery-events/voucherd/internal/models"
	"github.com/mystery-events/voucherd/internal/settings"
)

func newHealthRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewVoucherHealthHandler(consistency.NewRepairer(db), settings.NewStore(), 50)
	router := gin.New()
	router.GET("/v0/admin/voucher-health", handler.Run)
	return router
}

func getHealth(router *gin.Engine, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v0/admin/voucher-health"+query, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestVoucherHealthCheckReportsWithoutFixing(t *testing.T) {
	db := setupVoucherAdminDB(t)
	voucher := seedAdminVoucher(t, db, func(v *models.Voucher) {
		v.Status = models.VoucherStatusPending // stale after completed payment
	})

	router := newHealthRouter(db)
	w := getHealth(router, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Fix    bool `json:"fix"`
		Report struct {
			Checked int `json:"checked"`
			Fixed   int `json:"fixed"`
			Failed  int `json:"failed"`
		} `json:"report"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Fix {
		t.Fatal("default run must not fix")
	}
	if resp.Report.Checked != 1 {
		t.Fatalf("checked = %d", resp.Report.Checked)
	}
	if resp.Report.Fixed != 0 {
		t.Fatal("check pass must not fix anything")
	}

	var reloaded models.Voucher
	if errFind := db.First(&reloaded, "id = ?", voucher.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.Status != models.VoucherStatusPending {
		t.Fatal("check pass must not mutate vouchers")
	}
}

func TestVoucherHealthFixRepairs(t *testing.T) {
	db := setupVoucherAdminDB(t)
	voucher := seedAdminVoucher(t, db, func(v *models.Voucher) {
		v.Status = models.VoucherStatusPending
	})

	router := newHealthRouter(db)
	w := getHealth(router, "?fix=true")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Report struct {
			Fixed int `json:"fixed"`
		} `json:"report"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Report.Fixed != 1 {
		t.Fatalf("fixed = %d", resp.Report.Fixed)
	}

	var reloaded models.Voucher
	if errFind := db.First(&reloaded, "id = ?", voucher.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if reloaded.Status != models.VoucherStatusActive {
		t.Fatalf("status = %s", reloaded.Status)
	}
}

func TestVoucherHealthSingleVoucher(t *testing.T) {
	db := setupVoucherAdminDB(t)
	voucher := seedAdminVoucher(t, db, nil)

	router := newHealthRouter(db)
	w := getHealth(router, "?voucher_id="+voucher.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Voucher struct {
			Action string `json:"action"`
		} `json:"voucher"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Voucher.Action != string(consistency.ActionClean) {
		t.Fatalf("action = %s", resp.Voucher.Action)
	}
}

func TestVoucherHealthUnknownVoucher(t *testing.T) {
	db := setupVoucherAdminDB(t)
	router := newHealthRouter(db)
	w := getHealth(router, "?voucher_id=missing")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestVoucherHealthInvalidWindow(t *testing.T) {
	db := setupVoucherAdminDB(t)
	router := newHealthRouter(db)
	w := getHealth(router, "?window=zero")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}
