package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mystery-events/voucherd/internal/config"
	"gopkg.in/gomail.v2"
)

// Attachment is a binary file attached to a message.
type Attachment struct {
	Filename string
	Content  []byte
}

// Message is one addressed outbound email.
type Message struct {
	To         string
	FromName   string // Display name for the configured sender address.
	Subject    string
	HTML       string
	Attachment *Attachment
}

// Mailer sends a single message and reports success or failure per send.
//
// Implementations must honor ctx cancellation: a timed-out send is reported
// as a failure, never left indeterminate.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer delivers messages through an SMTP relay.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

// NewSMTPMailer constructs an SMTP-backed Mailer.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send transmits one message, honoring context cancellation.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("mail: empty recipient")
	}

	email := gomail.NewMessage()
	from := m.cfg.From
	if strings.TrimSpace(msg.FromName) != "" {
		from = email.FormatAddress(m.cfg.From, msg.FromName)
	}
	email.SetHeader("From", from)
	email.SetHeader("To", msg.To)
	email.SetHeader("Subject", msg.Subject)
	email.SetBody("text/html", msg.HTML)
	if msg.Attachment != nil {
		content := msg.Attachment.Content
		email.Attach(msg.Attachment.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, errCopy := bytes.NewReader(content).WriteTo(w)
			return errCopy
		}))
	}

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)

	done := make(chan error, 1)
	go func() {
		done <- dialer.DialAndSend(email)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("mail: send to %s: %w", msg.To, ctx.Err())
	case errSend := <-done:
		if errSend != nil {
			return fmt.Errorf("mail: send to %s: %w", msg.To, errSend)
		}
		return nil
	}
}
