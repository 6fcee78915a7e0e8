package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mystery-events/voucherd/internal/mail"
	"github.com/mystery-events/voucherd/internal/models"
	"github.com/mystery-events/voucherd/internal/render"
	"github.com/mystery-events/voucherd/internal/settings"
	"github.com/mystery-events/voucherd/internal/util"
)

// Pipeline errors.
var (
	// ErrVoucherNotFound indicates no voucher matches the requested ID.
	ErrVoucherNotFound = errors.New("fulfillment: voucher not found")
	// ErrPaymentNotCompleted indicates fulfillment was requested before payment capture.
	ErrPaymentNotCompleted = errors.New("fulfillment: payment not completed")
)

// SendState describes the outcome of one addressed send.
type SendState string

// Send states.
const (
	// StateSent means the message was delivered and the flag recorded.
	StateSent SendState = "sent"
	// StateAlreadySent means the idempotency flag was already set; no-op success.
	StateAlreadySent SendState = "already_sent"
	// StateScheduled means recipient delivery is deferred to a future date.
	StateScheduled SendState = "scheduled"
	// StateNoRecipient means the voucher has no recipient address.
	StateNoRecipient SendState = "no_recipient"
	// StateFailed means rendering, transmission or flag recording failed.
	StateFailed SendState = "failed"
)

// Stage names for failed sends.
const (
	StageRender   = "render"
	StageTransmit = "transmit"
	StageRecord   = "record"
)

// SendResult reports one party's delivery outcome.
type SendResult struct {
	State SendState `json:"state"`
	Stage string    `json:"stage,omitempty"` // Failing stage when State is failed.
	Error string    `json:"error,omitempty"`
}

// OK reports whether the outcome counts as success (including no-ops).
func (r SendResult) OK() bool { return r.State != StateFailed }

// Result aggregates both sends of one pipeline run.
type Result struct {
	Purchaser SendResult `json:"purchaser"`
	Recipient SendResult `json:"recipient"`
}

// Pipeline renders and delivers voucher artifacts with per-party idempotency.
type Pipeline struct {
	db          *gorm.DB
	renderer    render.Renderer
	mailer      mail.Mailer
	store       *settings.Store
	baseURL     string
	sendTimeout time.Duration
	now         func() time.Time
}

// NewPipeline wires the fulfillment pipeline with its capabilities.
func NewPipeline(db *gorm.DB, renderer render.Renderer, mailer mail.Mailer, store *settings.Store, baseURL string, sendTimeout time.Duration) *Pipeline {
	if store == nil {
		store = settings.NewStore()
	}
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}
	return &Pipeline{
		db:          db,
		renderer:    renderer,
		mailer:      mailer,
		store:       store,
		baseURL:     baseURL,
		sendTimeout: sendTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run fulfills one paid voucher: purchaser confirmation first, then the
// recipient gift email. The sends are isolated; either may fail without
// blocking the other, and repeated runs are side-effect free.
func (p *Pipeline) Run(ctx context.Context, voucherID string) (Result, error) {
	var voucher models.Voucher
	if errFind := p.db.WithContext(ctx).Preload("Event").First(&voucher, "id = ?", voucherID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return Result{}, ErrVoucherNotFound
		}
		return Result{}, errFind
	}
	if voucher.PaymentStatus != models.PaymentStatusCompleted {
		return Result{}, ErrPaymentNotCompleted
	}

	template := p.resolveTemplate(ctx)

	result := Result{}
	result.Purchaser = p.sendPurchaser(ctx, &voucher, template)
	result.Recipient = p.sendRecipient(ctx, &voucher, template)
	return result, nil
}

// Force clears both sent flags and re-runs the pipeline. Used by the
// operator resend path; flags are refreshed by the run itself.
func (p *Pipeline) Force(ctx context.Context, voucherID string) (Result, error) {
	if errClear := p.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("id = ?", voucherID).
		Updates(map[string]any{
			"purchaser_email_sent":    false,
			"purchaser_email_sent_at": nil,
			"recipient_email_sent":    false,
			"recipient_email_sent_at": nil,
		}).Error; errClear != nil {
		return Result{}, errClear
	}
	return p.Run(ctx, voucherID)
}

func (p *Pipeline) sendPurchaser(ctx context.Context, voucher *models.Voucher, template *models.EmailTemplate) SendResult {
	if voucher.PurchaserEmailSent {
		return SendResult{State: StateAlreadySent}
	}
	if strings.TrimSpace(voucher.PurchaserEmail) == "" {
		return SendResult{State: StateFailed, Stage: StageTransmit, Error: "purchaser email is empty"}
	}

	result := p.deliver(ctx, voucher, template, voucher.PurchaserEmail)
	if result.State != StateSent {
		return result
	}

	// Conditional write: a concurrent run that recorded its delivery first
	// wins, and this run degrades to a no-op.
	now := p.now()
	res := p.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("id = ? AND purchaser_email_sent = ?", voucher.ID, false).
		Updates(map[string]any{
			"purchaser_email_sent":    true,
			"purchaser_email_sent_at": now,
		})
	if res.Error != nil {
		log.Warnf("fulfillment: voucher %s purchaser flag update failed: %v", voucher.Code, res.Error)
		return SendResult{State: StateFailed, Stage: StageRecord, Error: res.Error.Error()}
	}
	if res.RowsAffected == 0 {
		log.Warnf("fulfillment: voucher %s purchaser delivery raced a concurrent run", voucher.Code)
		return SendResult{State: StateAlreadySent}
	}
	log.Infof("fulfillment: purchaser confirmation sent for voucher %s", voucher.Code)
	return result
}

func (p *Pipeline) sendRecipient(ctx context.Context, voucher *models.Voucher, template *models.EmailTemplate) SendResult {
	if voucher.RecipientEmail == nil || strings.TrimSpace(*voucher.RecipientEmail) == "" {
		return SendResult{State: StateNoRecipient}
	}
	// The idempotency flag wins over scheduling: a gift email already
	// delivered (for example by a forced resend) never reports scheduled.
	if voucher.RecipientEmailSent {
		return SendResult{State: StateAlreadySent}
	}
	if voucher.ScheduledDeliveryDate != nil && voucher.ScheduledDeliveryDate.After(p.now()) {
		// An external scheduler re-invokes delivery once the date elapses.
		return SendResult{State: StateScheduled}
	}

	result := p.deliver(ctx, voucher, template, *voucher.RecipientEmail)
	if result.State != StateSent {
		return result
	}

	now := p.now()
	res := p.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("id = ? AND recipient_email_sent = ?", voucher.ID, false).
		Updates(map[string]any{
			"recipient_email_sent":    true,
			"recipient_email_sent_at": now,
		})
	if res.Error != nil {
		log.Warnf("fulfillment: voucher %s recipient flag update failed: %v", voucher.Code, res.Error)
		return SendResult{State: StateFailed, Stage: StageRecord, Error: res.Error.Error()}
	}
	if res.RowsAffected == 0 {
		log.Warnf("fulfillment: voucher %s recipient delivery raced a concurrent run", voucher.Code)
		return SendResult{State: StateAlreadySent}
	}
	log.Infof("fulfillment: gift email sent for voucher %s", voucher.Code)
	return result
}

// deliver renders the artifact and transmits one message within the send timeout.
func (p *Pipeline) deliver(ctx context.Context, voucher *models.Voucher, template *models.EmailTemplate, to string) SendResult {
	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()

	document, errRender := p.renderer.Render(p.snapshot(voucher), voucher.TemplateUsed)
	if errRender != nil {
		log.Warnf("fulfillment: voucher %s render failed: %v", voucher.Code, errRender)
		return SendResult{State: StateFailed, Stage: StageRender, Error: errRender.Error()}
	}

	vars := templateVars(voucher)
	msg := mail.Message{
		To:       to,
		FromName: p.store.SenderName(),
		Subject:  RenderTemplate(template.Subject, vars),
		HTML:     RenderTemplate(template.BodyHTML, vars),
		Attachment: &mail.Attachment{
			Filename: fmt.Sprintf("vale-regalo-%s.pdf", voucher.Code),
			Content:  document,
		},
	}
	if errSend := p.mailer.Send(sendCtx, msg); errSend != nil {
		log.Warnf("fulfillment: voucher %s send to %s failed: %v", voucher.Code, util.MaskEmail(to), errSend)
		return SendResult{State: StateFailed, Stage: StageTransmit, Error: errSend.Error()}
	}
	return SendResult{State: StateSent}
}

// resolveTemplate loads the active DB template or falls back to the built-in one.
func (p *Pipeline) resolveTemplate(ctx context.Context) *models.EmailTemplate {
	var template models.EmailTemplate
	errFind := p.db.WithContext(ctx).
		Where("name = ? AND active = ?", purchaseTemplateName, true).
		First(&template).Error
	if errFind == nil {
		return &template
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		log.Warnf("fulfillment: template lookup failed, using built-in: %v", errFind)
	}
	return &models.EmailTemplate{Name: purchaseTemplateName, Subject: defaultSubject, BodyHTML: defaultBodyHTML}
}

func (p *Pipeline) snapshot(voucher *models.Voucher) render.Snapshot {
	snapshot := render.Snapshot{
		ID:              voucher.ID,
		Code:            voucher.Code,
		Type:            voucher.Type,
		OriginalAmount:  voucher.OriginalAmount,
		CurrentBalance:  voucher.CurrentBalance,
		PurchaserName:   voucher.PurchaserName,
		ExpiryDate:      voucher.ExpiryDate,
		PurchaseDate:    voucher.CreatedAt,
		VerificationURL: p.verificationURL(voucher.Code),
	}
	if voucher.PaidAt != nil {
		snapshot.PurchaseDate = *voucher.PaidAt
	}
	if voucher.RecipientName != nil {
		snapshot.RecipientName = *voucher.RecipientName
	}
	if voucher.PersonalMessage != nil {
		snapshot.PersonalMessage = *voucher.PersonalMessage
	}
	if voucher.TicketQuantity != nil {
		snapshot.TicketQuantity = *voucher.TicketQuantity
	}
	if voucher.Event != nil {
		snapshot.EventTitle = voucher.Event.Title
	}
	return snapshot
}

func (p *Pipeline) verificationURL(code string) string {
	base := p.store.PublicBaseURL(p.baseURL)
	return fmt.Sprintf("%s/validate/%s", base, code)
}

// templateVars builds the typed placeholder mapping for one voucher.
func templateVars(voucher *models.Voucher) map[string]string {
	vars := map[string]string{
		"purchaserName": voucher.PurchaserName,
		"voucherCode":   voucher.Code,
		"amount":        fmt.Sprintf("%.2f €", voucher.OriginalAmount),
		"expiryDate":    voucher.ExpiryDate.Format("02/01/2006"),
	}
	if voucher.RecipientName != nil {
		vars["recipientName"] = *voucher.RecipientName
	}
	if voucher.PersonalMessage != nil {
		vars["personalMessage"] = *voucher.PersonalMessage
	}
	if voucher.Event != nil {
		vars["eventTitle"] = voucher.Event.Title
	}
	return vars
}
