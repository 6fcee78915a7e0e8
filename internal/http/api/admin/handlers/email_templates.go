package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mystery-events/voucherd/internal/fulfillment"
	"github.com/mystery-events/voucherd/internal/mail"
	"github.com/mystery-events/voucherd/internal/models"
	"github.com/mystery-events/voucherd/internal/settings"
)

// EmailTemplateHandler handles admin operations for email templates.
type EmailTemplateHandler struct {
	db     *gorm.DB
	mailer mail.Mailer
	store  *settings.Store
}

// NewEmailTemplateHandler wires the template handler.
func NewEmailTemplateHandler(db *gorm.DB, mailer mail.Mailer, store *settings.Store) *EmailTemplateHandler {
	if store == nil {
		store = settings.NewStore()
	}
	return &EmailTemplateHandler{db: db, mailer: mailer, store: store}
}

// List returns all stored templates.
func (h *EmailTemplateHandler) List(c *gin.Context) {
	var rows []models.EmailTemplate
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("name ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list templates failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": rows})
}

// upsertTemplateRequest captures the payload for template writes.
type upsertTemplateRequest struct {
	Name     string `json:"name"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Active   *bool  `json:"active"`
}

// Upsert creates or replaces a template by name.
func (h *EmailTemplateHandler) Upsert(c *gin.Context) {
	var body upsertTemplateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	if strings.TrimSpace(body.Subject) == "" || strings.TrimSpace(body.BodyHTML) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing subject or body_html"})
		return
	}
	active := true
	if body.Active != nil {
		active = *body.Active
	}

	var template models.EmailTemplate
	errFind := h.db.WithContext(c.Request.Context()).Where("name = ?", name).First(&template).Error
	switch {
	case errFind == nil:
		if errUpdate := h.db.WithContext(c.Request.Context()).Model(&template).Updates(map[string]any{
			"subject":   body.Subject,
			"body_html": body.BodyHTML,
			"active":    active,
		}).Error; errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update template failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": template.ID, "name": name})
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		template = models.EmailTemplate{Name: name, Subject: body.Subject, BodyHTML: body.BodyHTML, Active: active}
		if errCreate := h.db.WithContext(c.Request.Context()).Create(&template).Error; errCreate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create template failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": template.ID, "name": name})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
	}
}

// testSendRequest captures the payload for a template test send.
type testSendRequest struct {
	To string `json:"to"`
}

// TestSend renders a template with sample data and mails it to the given
// address. Lets operators preview edits without touching real vouchers.
func (h *EmailTemplateHandler) TestSend(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body testSendRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	to := strings.TrimSpace(body.To)
	if to == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing to"})
		return
	}

	var template models.EmailTemplate
	if errFind := h.db.WithContext(c.Request.Context()).First(&template, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	vars := sampleTemplateVars()
	msg := mail.Message{
		To:       to,
		FromName: h.store.SenderName(),
		Subject:  fulfillment.RenderTemplate(template.Subject, vars),
		HTML:     fulfillment.RenderTemplate(template.BodyHTML, vars),
	}
	if errSend := h.mailer.Send(c.Request.Context(), msg); errSend != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "send failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true, "to": to})
}

// sampleTemplateVars fills every known placeholder with preview values.
func sampleTemplateVars() map[string]string {
	return map[string]string{
		"purchaserName":   "Ana García",
		"voucherCode":     "GIFT-TEST1234",
		"amount":          "75.00 €",
		"expiryDate":      time.Now().UTC().AddDate(1, 0, 0).Format("02/01/2006"),
		"recipientName":   "Luis Pérez",
		"personalMessage": "¡Felicidades!",
		"eventTitle":      "Cena misteriosa",
	}
}
