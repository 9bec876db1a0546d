package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/errors"
)

// AuditRepository records authentication events
type AuditRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *pgxpool.Pool, log *logger.Logger) *AuditRepository {
	return &AuditRepository{db: db, log: log}
}

// LogAuthEvent logs an authentication event
func (r *AuditRepository) LogAuthEvent(ctx context.Context, event *AuthEvent) error {
	query := `
		INSERT INTO auth_audit_log (user_id, event_type, ip_address, user_agent, success, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		nullable(event.UserID),
		event.EventType,
		event.IPAddress,
		event.UserAgent,
		event.Success,
		nullable(event.FailureReason),
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		// Callers log and continue; the audit trail never fails an operation
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to log auth event")
	}

	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
