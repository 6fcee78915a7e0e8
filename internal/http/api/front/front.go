package front

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mystery-events/voucherd/internal/gateway"
	"github.com/mystery-events/voucherd/internal/http/api/front/handlers"
	"github.com/mystery-events/voucherd/internal/payment"
)

// RegisterFrontRoutes registers the public voucher surfaces: the gateway
// webhook, the post-checkout landing lookup and code verification.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, gw gateway.Client, processor *payment.Processor) {
	if r == nil || db == nil {
		return
	}

	webhookHandler := handlers.NewWebhookHandler(db, gw, processor)
	r.POST("/webhooks/stripe", webhookHandler.Receive)

	front := r.Group("/v0/front")

	successHandler := handlers.NewPaymentSuccessHandler(db, gw, processor)
	front.GET("/payment/success", successHandler.Lookup)

	// The QR on the rendered voucher points at /validate/<code>.
	validateHandler := handlers.NewValidateHandler(db)
	r.GET("/validate/:code", validateHandler.Check)
}
