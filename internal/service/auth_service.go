package service

import (
	"context"
	"net/http"
	"time"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/repository"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/errors"
	jwtpkg "github.com/pesio-ai/be-plt-taskhub-identity/pkg/jwt"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/password"
)

const (
	msgUserNotFound       = "User not found"
	msgNotVerified        = "Email not verified. Please verify your email before logging in."
	msgInvalidCredentials = "Invalid credentials"
	msgInvalidToken       = "Invalid or expired token"
)

// AuthService issues and checks session tokens
type AuthService struct {
	users      UserStore
	audit      AuditLog
	jwtManager *jwtpkg.Manager
	now        func() time.Time
	log        *logger.Logger
}

func NewAuthService(
	users UserStore,
	audit AuditLog,
	jwtManager *jwtpkg.Manager,
	log *logger.Logger,
) *AuthService {
	return &AuthService{
		users:      users,
		audit:      audit,
		jwtManager: jwtManager,
		now:        time.Now,
		log:        log,
	}
}

type LoginRequest struct {
	Email    string
	Password string
	Meta     RequestMeta
}

type LoginResponse struct {
	AccessToken string
	ExpiresIn   int64
	User        *repository.User
}

// Login authenticates a verified user and issues a session token
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	s.log.Info().Str("email", req.Email).Msg("Login attempt")

	resp, userID, err := s.login(ctx, req)

	event := repository.AuthEvent{
		UserID:    userID,
		EventType: repository.EventLogin,
		IPAddress: req.Meta.IPAddress,
		UserAgent: req.Meta.UserAgent,
		Success:   err == nil,
	}
	if err != nil {
		event.FailureReason = string(errors.CodeOf(err))
	}
	recordEvent(ctx, s.audit, s.log, event)

	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", userID).Msg("Login successful")
	return resp, nil
}

func (s *AuthService) login(ctx context.Context, req *LoginRequest) (*LoginResponse, string, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if errors.HasCode(err, errors.ErrCodeNotFound) {
		s.log.Warn().Str("email", req.Email).Msg("User not found")
		return nil, "", errors.NotFound("User", req.Email).WithStatus(http.StatusBadRequest)
	}
	if err != nil {
		return nil, "", errors.Internal("Login failed", err)
	}

	if !user.IsVerified {
		s.log.Warn().Str("user_id", user.ID).Msg("Email not verified")
		return nil, user.ID, errors.New(errors.ErrCodeNotVerified, msgNotVerified)
	}

	valid, err := password.Verify(req.Password, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("Password verification failed")
		return nil, user.ID, errors.Internal("Login failed", err)
	}
	if !valid {
		s.log.Warn().Str("user_id", user.ID).Msg("Invalid password")
		return nil, user.ID, errors.New(errors.ErrCodeInvalidCredentials, msgInvalidCredentials)
	}

	identity := jwtpkg.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	}
	if user.CompanyID != nil {
		identity.CompanyID = *user.CompanyID
	}

	token, err := s.jwtManager.Issue(identity)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to generate token")
		return nil, user.ID, errors.Internal("Login failed", err)
	}

	updated, err := s.users.RecordLogin(ctx, user.ID, token, s.now())
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to record login")
		return nil, user.ID, errors.Internal("Login failed", err)
	}

	return &LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.jwtManager.TTL().Seconds()),
		User:        updated,
	}, user.ID, nil
}

// ValidateToken verifies a session token and returns its claims. It does not
// consult the store, so a token stays valid until it expires.
func (s *AuthService) ValidateToken(token string) (*jwtpkg.Claims, error) {
	claims, err := s.jwtManager.Verify(token)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnauthorized, msgInvalidToken)
	}
	return claims, nil
}
