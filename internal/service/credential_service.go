package service

import (
	"context"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/repository"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/errors"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/password"
)

const (
	msgIncorrectOldPassword = "Old password is incorrect"
	msgPasswordMismatch     = "New password and confirm password do not match"
)

// CredentialService rotates passwords of authenticated identities
type CredentialService struct {
	users UserStore
	audit AuditLog
	log   *logger.Logger
}

func NewCredentialService(users UserStore, audit AuditLog, log *logger.Logger) *CredentialService {
	return &CredentialService{users: users, audit: audit, log: log}
}

type ChangePasswordRequest struct {
	UserID      string
	OldPassword string
	NewPassword string
	Meta        RequestMeta
}

// ChangePassword replaces the password after checking the current one
func (s *CredentialService) ChangePassword(ctx context.Context, req *ChangePasswordRequest) error {
	return s.change(ctx, req, nil)
}

// ChangePasswordConfirmed is ChangePassword with a confirmation value that must
// equal the new password. The old password is checked first.
func (s *CredentialService) ChangePasswordConfirmed(ctx context.Context, req *ChangePasswordRequest, confirmPassword string) error {
	return s.change(ctx, req, &confirmPassword)
}

func (s *CredentialService) change(ctx context.Context, req *ChangePasswordRequest, confirm *string) error {
	err := s.rotate(ctx, req, confirm)

	event := repository.AuthEvent{
		UserID:    req.UserID,
		EventType: repository.EventChangePassword,
		IPAddress: req.Meta.IPAddress,
		UserAgent: req.Meta.UserAgent,
		Success:   err == nil,
	}
	if err != nil {
		event.FailureReason = string(errors.CodeOf(err))
	}
	recordEvent(ctx, s.audit, s.log, event)

	if err != nil {
		return err
	}

	s.log.Info().Str("user_id", req.UserID).Msg("Password changed successfully")
	return nil
}

func (s *CredentialService) rotate(ctx context.Context, req *ChangePasswordRequest, confirm *string) error {
	user, err := s.users.GetByID(ctx, req.UserID)
	if errors.HasCode(err, errors.ErrCodeNotFound) {
		return errors.NotFound("User", req.UserID)
	}
	if err != nil {
		return errors.Internal("Failed to update password", err)
	}

	valid, err := password.Verify(req.OldPassword, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("Password verification failed")
		return errors.Internal("Failed to update password", err)
	}
	if !valid {
		s.log.Warn().Str("user_id", user.ID).Msg("Old password is incorrect")
		return errors.New(errors.ErrCodeIncorrectOldPassword, msgIncorrectOldPassword)
	}

	if confirm != nil && req.NewPassword != *confirm {
		return errors.New(errors.ErrCodePasswordMismatch, msgPasswordMismatch)
	}

	hash, err := hashPassword(req.NewPassword, "newPassword", "Failed to update password")
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return errors.NotFound("User", req.UserID)
		}
		return errors.Internal("Failed to update password", err)
	}

	return nil
}
