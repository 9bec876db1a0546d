package service

import (
	"context"
	"time"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/repository"
)

// UserStore reads and updates identities
type UserStore interface {
	GetByID(ctx context.Context, id string) (*repository.User, error)
	GetByEmail(ctx context.Context, email string) (*repository.User, error)
	// MarkVerified returns repository.ErrStaleOTP unless the user is still pending with otp
	MarkVerified(ctx context.Context, id string, otp int) (*repository.User, error)
	RecordLogin(ctx context.Context, id, sessionToken string, at time.Time) (*repository.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// RegistrationStore writes pending registrations together with their company
type RegistrationStore interface {
	// CreatePending returns repository.ErrEmailTaken when the email already exists
	CreatePending(ctx context.Context, user *repository.User, company *repository.Company) error
	// RefreshPending returns repository.ErrNotPending when the user was verified meanwhile
	RefreshPending(ctx context.Context, user *repository.User, companyName string) (*repository.Company, error)
}

// CompanyStore reads companies
type CompanyStore interface {
	GetCompany(ctx context.Context, id string) (*repository.Company, error)
}

// AuditLog records authentication events
type AuditLog interface {
	LogAuthEvent(ctx context.Context, event *repository.AuthEvent) error
}

// Mailer delivers account emails
type Mailer interface {
	SendVerificationOTP(ctx context.Context, to, name string, otp int) error
	SendWelcome(ctx context.Context, to, name string) error
}

// OTPSource produces one-time verification codes
type OTPSource interface {
	Generate() (int, error)
}

// RequestMeta describes the client of a request for the audit log
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// recordEvent writes an audit event. Failures are logged and otherwise ignored.
func recordEvent(ctx context.Context, audit AuditLog, log *logger.Logger, event repository.AuthEvent) {
	if audit == nil {
		return
	}
	if err := audit.LogAuthEvent(ctx, &event); err != nil {
		log.Warn().Err(err).
			Str("user_id", event.UserID).
			Str("event_type", event.EventType).
			Msg("Failed to write auth audit event")
	}
}
