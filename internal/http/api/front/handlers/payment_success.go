package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mystery-events/voucherd/internal/gateway"
	"github.com/mystery-events/voucherd/internal/models"
	"github.com/mystery-events/voucherd/internal/payment"
)

// PaymentSuccessHandler serves the post-checkout landing lookup.
//
// It is the synchronous fallback for the webhook: when the buyer returns
// before the notification lands, the gateway is consulted directly and the
// same completion path runs.
type PaymentSuccessHandler struct {
	db        *gorm.DB
	gw        gateway.Client
	processor *payment.Processor
}

// NewPaymentSuccessHandler wires the landing endpoint.
func NewPaymentSuccessHandler(db *gorm.DB, gw gateway.Client, processor *payment.Processor) *PaymentSuccessHandler {
	return &PaymentSuccessHandler{db: db, gw: gw, processor: processor}
}

// Lookup resolves the voucher behind a checkout session and, when the
// gateway already captured the payment, completes it inline.
func (h *PaymentSuccessHandler) Lookup(c *gin.Context) {
	sessionRef := strings.TrimSpace(c.Query("session_id"))
	if sessionRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session_id"})
		return
	}

	var voucher models.Voucher
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("stripe_session_id = ?", sessionRef).
		First(&voucher).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if voucher.PaymentStatus != models.PaymentStatusCompleted {
		session, errStatus := h.gw.SessionStatus(c.Request.Context(), sessionRef)
		if errStatus != nil {
			log.Warnf("payment success: session %s status check failed: %v", sessionRef, errStatus)
			c.JSON(http.StatusBadGateway, gin.H{"error": "gateway unavailable"})
			return
		}
		if session.Paid {
			if _, errComplete := h.processor.CompleteBySession(c.Request.Context(), sessionRef, session.PaymentRef); errComplete != nil {
				log.Errorf("payment success: completing session %s failed: %v", sessionRef, errComplete)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
				return
			}
			if errReload := h.db.WithContext(c.Request.Context()).
				First(&voucher, "id = ?", voucher.ID).Error; errReload != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
				return
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"code":            voucher.Code,
		"type":            voucher.Type,
		"amount":          voucher.OriginalAmount,
		"payment_status":  voucher.PaymentStatus,
		"status":          voucher.Status,
		"purchaser_name":  voucher.PurchaserName,
		"expiry_date":     voucher.ExpiryDate,
		"email_delivered": voucher.PurchaserEmailSent,
	})
}
