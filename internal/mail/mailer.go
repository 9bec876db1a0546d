// Package mail renders account emails and hands them to an outbound transport.
package mail

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
)

// ErrInvalidRecipient is returned for addresses that cannot receive mail
var ErrInvalidRecipient = errors.New("invalid recipient email address")

var recipientPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Message is a rendered email ready for delivery
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Text     string `json:"text"`
	HTML     string `json:"html"`
	Template string `json:"template"`
}

// Transport delivers rendered messages
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer sends the verification and welcome emails
type Mailer struct {
	transport Transport
	appName   string
	log       *logger.Logger
}

// NewMailer creates a mailer on top of a transport
func NewMailer(transport Transport, appName string, log *logger.Logger) *Mailer {
	return &Mailer{transport: transport, appName: appName, log: log}
}

// SendVerificationOTP mails the one-time code that confirms the address
func (m *Mailer) SendVerificationOTP(ctx context.Context, to, name string, otp int) error {
	msg, err := renderVerificationOTP(m.appName, to, name, otp)
	if err != nil {
		return err
	}
	return m.send(ctx, msg)
}

// SendWelcome mails the greeting sent after verification
func (m *Mailer) SendWelcome(ctx context.Context, to, name string) error {
	msg, err := renderWelcome(m.appName, to, name)
	if err != nil {
		return err
	}
	return m.send(ctx, msg)
}

func (m *Mailer) send(ctx context.Context, msg Message) error {
	if !recipientPattern.MatchString(msg.To) {
		m.log.Error().Str("to", msg.To).Msg("Invalid email address")
		return ErrInvalidRecipient
	}

	m.log.Info().Str("to", msg.To).Str("template", msg.Template).Msg("Sending email")
	if err := m.transport.Send(ctx, msg); err != nil {
		m.log.Error().Err(err).Str("to", msg.To).Str("template", msg.Template).Msg("Email sending failed")
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
