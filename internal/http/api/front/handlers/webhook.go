package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mystery-events/voucherd/internal/gateway"
	"github.com/mystery-events/voucherd/internal/models"
	"github.com/mystery-events/voucherd/internal/payment"
)

// WebhookHandler receives payment gateway notifications.
type WebhookHandler struct {
	db        *gorm.DB
	gw        gateway.Client
	processor *payment.Processor
}

// NewWebhookHandler wires the webhook endpoint with its dependencies.
func NewWebhookHandler(db *gorm.DB, gw gateway.Client, processor *payment.Processor) *WebhookHandler {
	return &WebhookHandler{db: db, gw: gw, processor: processor}
}

// Receive authenticates a gateway notification and applies it.
//
// Unauthentic payloads are rejected before any side effect. Authentic events
// are archived first, then applied; a transient failure answers 5xx so the
// gateway redelivers, and the duplicate is absorbed by voucher state.
func (h *WebhookHandler) Receive(c *gin.Context) {
	payload, errRead := c.GetRawData()
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}

	event, errVerify := h.gw.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if errVerify != nil {
		if errors.Is(errVerify, gateway.ErrBadSignature) {
			log.Warnf("webhook: rejected unauthentic payload from %s", c.ClientIP())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}
		if errors.Is(errVerify, gateway.ErrIgnoredEvent) {
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}

	archive := models.WebhookEvent{
		Provider:        event.Provider,
		ProviderEventID: event.EventID,
		EventType:       event.EventType,
		Payload:         datatypes.JSON(payload),
		SessionRef:      event.SessionRef,
	}
	if errArchive := h.db.WithContext(c.Request.Context()).Create(&archive).Error; errArchive != nil {
		log.Warnf("webhook: archive of event %s failed: %v", event.EventID, errArchive)
	}

	outcome, errComplete := h.processor.CompleteBySession(c.Request.Context(), event.SessionRef, event.PaymentRef)
	h.recordProcessing(c, &archive, errComplete)
	if errComplete != nil {
		switch {
		case errors.Is(errComplete, payment.ErrVoucherNotFound):
			// Acknowledged so the gateway stops redelivering; the archive
			// row keeps the orphan signal visible to operators.
			log.Warnf("webhook: no voucher for session %s (event %s)", event.SessionRef, event.EventID)
			c.JSON(http.StatusOK, gin.H{"received": true, "matched": false})
		case errors.Is(errComplete, payment.ErrIntegrity):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "voucher store integrity fault"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received":     true,
		"matched":      true,
		"transitioned": outcome.Transitioned,
	})
}

// recordProcessing stamps the archive row with the processing result.
func (h *WebhookHandler) recordProcessing(c *gin.Context, archive *models.WebhookEvent, errComplete error) {
	if archive.ID == 0 {
		return
	}
	now := time.Now().UTC()
	updates := map[string]any{"processed_at": now}
	if errComplete != nil {
		updates["processing_error"] = errComplete.Error()
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.WebhookEvent{}).
		Where("id = ?", archive.ID).
		Updates(updates).Error; errUpdate != nil {
		log.Warnf("webhook: stamping archive %d failed: %v", archive.ID, errUpdate)
	}
}
