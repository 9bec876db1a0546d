package service

import (
	"context"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/repository"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/errors"
)

// UserService exposes read access to identities for administrators
type UserService struct {
	users     UserStore
	companies CompanyStore
	log       *logger.Logger
}

func NewUserService(users UserStore, companies CompanyStore, log *logger.Logger) *UserService {
	return &UserService{users: users, companies: companies, log: log}
}

// UserDetails is an identity together with its company, if any
type UserDetails struct {
	User    *repository.User
	Company *repository.Company
}

// GetUser retrieves a user and its company by user ID
func (s *UserService) GetUser(ctx context.Context, id string) (*UserDetails, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.HasCode(err, errors.ErrCodeNotFound) {
		return nil, errors.NotFound("User", id)
	}
	if err != nil {
		return nil, errors.Internal("Failed to get user", err)
	}

	details := &UserDetails{User: user}
	if user.CompanyID == nil {
		return details, nil
	}

	company, err := s.companies.GetCompany(ctx, *user.CompanyID)
	switch {
	case err == nil:
		details.Company = company
	case errors.HasCode(err, errors.ErrCodeNotFound):
		s.log.Warn().Str("user_id", id).Str("company_id", *user.CompanyID).Msg("Linked company missing")
	default:
		return nil, errors.Internal("Failed to get user", err)
	}

	return details, nil
}
