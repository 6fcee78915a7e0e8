package gateway

import (
	"context"
	"errors"
)

// Gateway errors.
var (
	// ErrBadSignature indicates a webhook payload failed authenticity checks.
	ErrBadSignature = errors.New("gateway: webhook signature invalid")
	// ErrIgnoredEvent indicates an authentic event type this service does not process.
	ErrIgnoredEvent = errors.New("gateway: event type not handled")
)

// Session is the gateway's view of one checkout session.
type Session struct {
	SessionRef string // Gateway session identifier.
	PaymentRef string // Captured payment identifier, empty until paid.
	Paid       bool   // Whether the gateway captured the payment.
}

// CompletionEvent is the typed form of an authentic payment-completion signal.
//
// Boundary decode happens here: raw gateway payloads never cross into the
// payment processor.
type CompletionEvent struct {
	Provider   string // Gateway name, e.g. stripe.
	EventID    string // Gateway-assigned event identifier.
	EventType  string // Raw gateway event type string.
	SessionRef string // Checkout session the payment belongs to.
	PaymentRef string // Captured payment identifier.
}

// Client is the payment gateway capability.
type Client interface {
	// SessionStatus fetches the current state of a checkout session.
	SessionStatus(ctx context.Context, sessionRef string) (Session, error)
	// VerifyWebhook authenticates a raw notification and decodes it into a
	// typed completion event. Returns ErrBadSignature for unauthentic
	// payloads and ErrIgnoredEvent for authentic but irrelevant types.
	VerifyWebhook(payload []byte, signature string) (CompletionEvent, error)
}
