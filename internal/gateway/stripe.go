package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v79"
	stripeclient "github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/mystery-events/voucherd/internal/config"
)

// ProviderStripe names the Stripe gateway in archived events.
const ProviderStripe = "stripe"

// completionEventType is the only webhook type that drives a transition.
const completionEventType = "checkout.session.completed"

// StripeClient implements Client against the Stripe API.
type StripeClient struct {
	api           *stripeclient.API
	webhookSecret string
}

// NewStripeClient constructs a StripeClient from gateway credentials.
func NewStripeClient(cfg config.StripeConfig) *StripeClient {
	api := &stripeclient.API{}
	api.Init(cfg.SecretKey, nil)
	return &StripeClient{api: api, webhookSecret: cfg.WebhookSecret}
}

// SessionStatus fetches a checkout session and reports whether it was paid.
func (c *StripeClient) SessionStatus(ctx context.Context, sessionRef string) (Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	sess, errGet := c.api.CheckoutSessions.Get(sessionRef, params)
	if errGet != nil {
		return Session{}, fmt.Errorf("gateway: fetch session %s: %w", sessionRef, errGet)
	}

	out := Session{
		SessionRef: sess.ID,
		Paid:       sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	if sess.PaymentIntent != nil {
		out.PaymentRef = sess.PaymentIntent.ID
	}
	return out, nil
}

// VerifyWebhook authenticates a Stripe webhook and decodes the completion event.
func (c *StripeClient) VerifyWebhook(payload []byte, signature string) (CompletionEvent, error) {
	event, errVerify := webhook.ConstructEvent(payload, signature, c.webhookSecret)
	if errVerify != nil {
		return CompletionEvent{}, fmt.Errorf("%w: %v", ErrBadSignature, errVerify)
	}
	return decodeStripeEvent(event)
}

// decodeStripeEvent converts a verified Stripe event into a typed completion event.
func decodeStripeEvent(event stripe.Event) (CompletionEvent, error) {
	out := CompletionEvent{
		Provider:  ProviderStripe,
		EventID:   event.ID,
		EventType: string(event.Type),
	}
	if string(event.Type) != completionEventType {
		return out, ErrIgnoredEvent
	}

	var sess stripe.CheckoutSession
	if errUnmarshal := json.Unmarshal(event.Data.Raw, &sess); errUnmarshal != nil {
		return out, fmt.Errorf("gateway: decode session payload: %w", errUnmarshal)
	}
	if strings.TrimSpace(sess.ID) == "" {
		return out, fmt.Errorf("gateway: completion event %s has no session id", event.ID)
	}

	out.SessionRef = sess.ID
	if sess.PaymentIntent != nil {
		out.PaymentRef = sess.PaymentIntent.ID
	}
	return out, nil
}
