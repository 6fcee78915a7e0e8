package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mystery-events/voucherd/internal/config"
	"github.com/mystery-events/voucherd/internal/consistency"
	"github.com/mystery-events/voucherd/internal/fulfillment"
	"github.com/mystery-events/voucherd/internal/http/api/admin/handlers"
	"github.com/mystery-events/voucherd/internal/mail"
	"github.com/mystery-events/voucherd/internal/models"
	"github.com/mystery-events/voucherd/internal/payment"
	"github.com/mystery-events/voucherd/internal/security"
	"github.com/mystery-events/voucherd/internal/settings"
)

// RegisterAdminRoutes registers operator endpoints under /v0/admin.
func RegisterAdminRoutes(
	r *gin.Engine,
	db *gorm.DB,
	cfg *config.Config,
	processor *payment.Processor,
	pipeline *fulfillment.Pipeline,
	repairer *consistency.Repairer,
	mailer mail.Mailer,
	store *settings.Store,
) {
	if r == nil || db == nil {
		return
	}

	group := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, cfg.JWT)
	group.POST("/login", authHandler.Login)

	authed := group.Group("")
	authed.Use(adminAuthMiddleware(db, cfg.JWT))

	voucherHandler := handlers.NewVoucherHandler(db, processor, pipeline)
	authed.GET("/vouchers", voucherHandler.List)
	authed.GET("/vouchers/:id", voucherHandler.Get)
	authed.POST("/vouchers/:id/replay", voucherHandler.Replay)
	authed.POST("/vouchers/:id/resend", voucherHandler.Resend)

	healthHandler := handlers.NewVoucherHealthHandler(repairer, store, cfg.Consistency.ScanWindow)
	authed.GET("/voucher-health", healthHandler.Run)

	templateHandler := handlers.NewEmailTemplateHandler(db, mailer, store)
	authed.GET("/email-templates", templateHandler.List)
	authed.POST("/email-templates", templateHandler.Upsert)
	authed.POST("/email-templates/:id/test-send", templateHandler.TestSend)

	adminHandler := handlers.NewAdminHandler(db)
	authed.GET("/admins", adminHandler.List)
	authed.POST("/admins", adminHandler.Create)
	authed.PUT("/admins/:id", adminHandler.Update)
}

// adminAuthMiddleware validates operator JWTs and loads the admin into context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Next()
	}
}
