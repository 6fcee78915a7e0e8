package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mystery-events/voucherd/internal/models"
)

// ValidateHandler serves the public voucher verification endpoint reached
// from the QR code printed on the voucher.
type ValidateHandler struct {
	db *gorm.DB
}

// NewValidateHandler constructs a ValidateHandler.
func NewValidateHandler(db *gorm.DB) *ValidateHandler {
	return &ValidateHandler{db: db}
}

// Check reports whether a voucher code is currently redeemable.
func (h *ValidateHandler) Check(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}

	var voucher models.Voucher
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Event").
		Where("code = ?", code).
		First(&voucher).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found", "valid": false})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	valid := voucher.Status == models.VoucherStatusActive &&
		voucher.PaymentStatus == models.PaymentStatusCompleted &&
		voucher.ExpiryDate.After(time.Now().UTC())

	out := gin.H{
		"valid":           valid,
		"code":            voucher.Code,
		"type":            voucher.Type,
		"status":          voucher.Status,
		"current_balance": voucher.CurrentBalance,
		"expiry_date":     voucher.ExpiryDate,
	}
	if voucher.Event != nil {
		out["event_title"] = voucher.Event.Title
	}
	if voucher.TicketQuantity != nil {
		out["ticket_quantity"] = *voucher.TicketQuantity
	}
	c.JSON(http.StatusOK, out)
}
