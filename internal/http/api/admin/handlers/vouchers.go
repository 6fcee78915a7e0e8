package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbutil "github.com/mystery-events/voucherd/internal/db"
	"github.com/mystery-events/voucherd/internal/fulfillment"
	"github.com/mystery-events/voucherd/internal/models"
	"github.com/mystery-events/voucherd/internal/payment"
)

// VoucherHandler handles admin operations over vouchers.
type VoucherHandler struct {
	db        *gorm.DB
	processor *payment.Processor
	pipeline  *fulfillment.Pipeline
}

// NewVoucherHandler wires the voucher admin handler.
func NewVoucherHandler(db *gorm.DB, processor *payment.Processor, pipeline *fulfillment.Pipeline) *VoucherHandler {
	return &VoucherHandler{db: db, processor: processor, pipeline: pipeline}
}

// List returns vouchers filtered by query parameters, newest first.
func (h *VoucherHandler) List(c *gin.Context) {
	var (
		codeQ          = strings.TrimSpace(c.Query("code"))
		purchaserQ     = strings.TrimSpace(c.Query("purchaser"))
		paymentStatusQ = strings.TrimSpace(c.Query("payment_status"))
		statusQ        = strings.TrimSpace(c.Query("status"))
		sessionQ       = strings.TrimSpace(c.Query("session_id"))
	)

	q := h.db.WithContext(c.Request.Context()).
		Model(&models.Voucher{}).
		Preload("Event")
	if codeQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+codeQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "code"), pattern)
	}
	if purchaserQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+purchaserQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "purchaser_email"), pattern)
	}
	if paymentStatusQ != "" {
		q = q.Where("payment_status = ?", paymentStatusQ)
	}
	if statusQ != "" {
		q = q.Where("status = ?", statusQ)
	}
	if sessionQ != "" {
		q = q.Where("stripe_session_id = ?", sessionQ)
	}

	page, pageSize := pagination(c)
	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	var rows []models.Voucher
	if errFind := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list vouchers failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatVoucher(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"vouchers":  out,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Get fetches a single voucher by ID.
func (h *VoucherHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var voucher models.Voucher
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Event").
		First(&voucher, "id = ?", id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatVoucher(&voucher))
}

// Replay re-applies the completion path for one voucher. Safe on vouchers
// that already completed: the transition is skipped and only the idempotent
// delivery pass runs.
func (h *VoucherHandler) Replay(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	outcome, errReplay := h.processor.CompleteByID(c.Request.Context(), id, "")
	if errReplay != nil {
		if errors.Is(errReplay, payment.ErrVoucherNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "replay failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"voucher_id":   outcome.VoucherID,
		"code":         outcome.Code,
		"transitioned": outcome.Transitioned,
	})
}

// Resend clears the delivery flags and forces both emails out again.
func (h *VoucherHandler) Resend(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	result, errResend := h.pipeline.Force(c.Request.Context(), id)
	if errResend != nil {
		switch {
		case errors.Is(errResend, fulfillment.ErrVoucherNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errResend, fulfillment.ErrPaymentNotCompleted):
			c.JSON(http.StatusConflict, gin.H{"error": "payment not completed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "resend failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"purchaser": result.Purchaser,
		"recipient": result.Recipient,
	})
}

// pagination reads page/page_size query parameters with sane bounds.
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return page, pageSize
}

// formatVoucher shapes one voucher for admin responses.
func formatVoucher(voucher *models.Voucher) gin.H {
	out := gin.H{
		"id":                   voucher.ID,
		"code":                 voucher.Code,
		"type":                 voucher.Type,
		"original_amount":      voucher.OriginalAmount,
		"current_balance":      voucher.CurrentBalance,
		"purchaser_name":       voucher.PurchaserName,
		"purchaser_email":      voucher.PurchaserEmail,
		"payment_status":       voucher.PaymentStatus,
		"status":               voucher.Status,
		"stripe_session_id":    voucher.StripeSessionID,
		"expiry_date":          voucher.ExpiryDate,
		"purchaser_email_sent": voucher.PurchaserEmailSent,
		"recipient_email_sent": voucher.RecipientEmailSent,
		"created_at":           voucher.CreatedAt,
	}
	if voucher.StripePaymentID != nil {
		out["stripe_payment_id"] = *voucher.StripePaymentID
	}
	if voucher.PaidAt != nil {
		out["paid_at"] = *voucher.PaidAt
	}
	if voucher.RecipientName != nil {
		out["recipient_name"] = *voucher.RecipientName
	}
	if voucher.RecipientEmail != nil {
		out["recipient_email"] = *voucher.RecipientEmail
	}
	if voucher.ScheduledDeliveryDate != nil {
		out["scheduled_delivery_date"] = *voucher.ScheduledDeliveryDate
	}
	if voucher.Event != nil {
		out["event_title"] = voucher.Event.Title
	}
	if voucher.TicketQuantity != nil {
		out["ticket_quantity"] = *voucher.TicketQuantity
	}
	return out
}
