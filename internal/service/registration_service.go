package service

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/repository"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/errors"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/password"
)

// OTPValidity is how long a verification code is accepted after it was issued
const OTPValidity = 15 * time.Minute

const (
	msgEmailRegistered = "Email already Registered"
	msgInvalidOTP      = "Invalid or expired OTP"
	msgAlreadyVerified = "User already verified"
)

// errRegistrationRaced means a concurrent request changed the identity between
// the lookup and the write
var errRegistrationRaced = stderrors.New("registration raced with a concurrent request")

// RegistrationService drives an identity from NEW through PENDING to VERIFIED
type RegistrationService struct {
	users         UserStore
	registrations RegistrationStore
	audit         AuditLog
	mailer        Mailer
	otp           OTPSource
	now           func() time.Time
	log           *logger.Logger
}

func NewRegistrationService(
	users UserStore,
	registrations RegistrationStore,
	audit AuditLog,
	mailer Mailer,
	otp OTPSource,
	log *logger.Logger,
) *RegistrationService {
	return &RegistrationService{
		users:         users,
		registrations: registrations,
		audit:         audit,
		mailer:        mailer,
		otp:           otp,
		now:           time.Now,
		log:           log,
	}
}

// WithClock replaces the clock used for OTP timestamps and expiry checks
func (s *RegistrationService) WithClock(now func() time.Time) *RegistrationService {
	s.now = now
	return s
}

type RegisterRequest struct {
	Email       string
	Name        string
	Password    string
	CompanyName string
	Meta        RequestMeta
}

type RegisterResult struct {
	User    *repository.User
	Company *repository.Company
	// Created is false when a pending identity was updated with a fresh code
	Created bool
}

// Register creates a pending identity with its company, or refreshes the details
// and code of one that is still pending, and mails the verification code.
func (s *RegistrationService) Register(ctx context.Context, req *RegisterRequest) (*RegisterResult, error) {
	s.log.Info().Str("email", req.Email).Msg("Registration attempt")

	res, err := s.register(ctx, req)
	if stderrors.Is(err, errRegistrationRaced) {
		s.log.Warn().Str("email", req.Email).Msg("Registration raced, retrying")
		res, err = s.register(ctx, req)
		if stderrors.Is(err, errRegistrationRaced) {
			err = errors.New(errors.ErrCodeAlreadyRegistered, msgEmailRegistered)
		}
	}

	event := repository.AuthEvent{
		EventType: repository.EventRegister,
		IPAddress: req.Meta.IPAddress,
		UserAgent: req.Meta.UserAgent,
		Success:   err == nil,
	}
	if err != nil {
		event.FailureReason = string(errors.CodeOf(err))
		recordEvent(ctx, s.audit, s.log, event)
		return nil, err
	}
	event.UserID = res.User.ID
	recordEvent(ctx, s.audit, s.log, event)

	s.log.Info().
		Str("user_id", res.User.ID).
		Str("company_id", res.Company.ID).
		Bool("created", res.Created).
		Msg("Verification code sent")

	return res, nil
}

func (s *RegistrationService) register(ctx context.Context, req *RegisterRequest) (*RegisterResult, error) {
	existing, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil && !errors.HasCode(err, errors.ErrCodeNotFound) {
		return nil, errors.Internal("Failed to create user", err)
	}
	if existing != nil && existing.IsVerified {
		return nil, errors.New(errors.ErrCodeAlreadyRegistered, msgEmailRegistered)
	}

	code, err := s.otp.Generate()
	if err != nil {
		return nil, errors.Internal("Failed to create user", err)
	}
	hash, err := hashPassword(req.Password, "password", "Failed to create user")
	if err != nil {
		return nil, err
	}
	issuedAt := s.now()

	var res *RegisterResult
	if existing == nil {
		res, err = s.createPending(ctx, req, hash, code, issuedAt)
	} else {
		res, err = s.refreshPending(ctx, existing, req, hash, code, issuedAt)
	}
	if err != nil {
		return nil, err
	}

	// The identity stays pending on failure so a new registration can issue a new code
	if err := s.mailer.SendVerificationOTP(ctx, res.User.Email, res.User.Name, code); err != nil {
		s.log.Error().Err(err).Str("user_id", res.User.ID).Msg("Failed to send verification email")
		return nil, errors.Internal("Failed to create user", err)
	}

	return res, nil
}

func (s *RegistrationService) createPending(ctx context.Context, req *RegisterRequest, hash string, code int, issuedAt time.Time) (*RegisterResult, error) {
	user := &repository.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         RoleFor(MembershipOwner),
		OTP:          &code,
		OTPCreatedAt: &issuedAt,
	}
	company := &repository.Company{
		Name:       req.CompanyName,
		IsApproved: true,
	}

	err := s.registrations.CreatePending(ctx, user, company)
	if stderrors.Is(err, repository.ErrEmailTaken) {
		return nil, errRegistrationRaced
	}
	if err != nil {
		s.log.Error().Err(err).Str("email", req.Email).Msg("Failed to create pending user")
		return nil, errors.Internal("Failed to create user", err)
	}

	return &RegisterResult{User: user, Company: company, Created: true}, nil
}

func (s *RegistrationService) refreshPending(ctx context.Context, existing *repository.User, req *RegisterRequest, hash string, code int, issuedAt time.Time) (*RegisterResult, error) {
	user := *existing
	user.Name = req.Name
	user.PasswordHash = hash
	user.Role = ResolveRole(existing.Role, MembershipOwner)
	user.OTP = &code
	user.OTPCreatedAt = &issuedAt

	company, err := s.registrations.RefreshPending(ctx, &user, req.CompanyName)
	if stderrors.Is(err, repository.ErrNotPending) {
		return nil, errRegistrationRaced
	}
	if err != nil {
		s.log.Error().Err(err).Str("user_id", existing.ID).Msg("Failed to refresh pending user")
		return nil, errors.Internal("Failed to create user", err)
	}

	return &RegisterResult{User: &user, Company: company, Created: false}, nil
}

type VerifyOTPRequest struct {
	Email string
	OTP   int
	Meta  RequestMeta
}

// VerifyOTP confirms the email of a pending identity. The code is accepted only
// when it equals the stored one and was issued no more than OTPValidity ago.
func (s *RegistrationService) VerifyOTP(ctx context.Context, req *VerifyOTPRequest) (*repository.User, error) {
	user, err := s.verify(ctx, req)

	event := repository.AuthEvent{
		EventType: repository.EventVerifyOTP,
		IPAddress: req.Meta.IPAddress,
		UserAgent: req.Meta.UserAgent,
		Success:   err == nil,
	}
	if user != nil {
		event.UserID = user.ID
	}
	if err != nil {
		event.FailureReason = string(errors.CodeOf(err))
	}
	recordEvent(ctx, s.audit, s.log, event)

	if err != nil {
		return nil, err
	}

	if err := s.mailer.SendWelcome(ctx, user.Email, user.Name); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to send welcome email")
	}

	s.log.Info().Str("user_id", user.ID).Msg("Email verified")
	return user, nil
}

// verify returns the looked-up user alongside any error so failures can be audited
func (s *RegistrationService) verify(ctx context.Context, req *VerifyOTPRequest) (*repository.User, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if errors.HasCode(err, errors.ErrCodeNotFound) {
		return nil, errors.NotFound("User", req.Email)
	}
	if err != nil {
		return nil, errors.Internal("Failed to verify OTP", err)
	}

	if user.IsVerified {
		return user, errors.New(errors.ErrCodeAlreadyVerified, msgAlreadyVerified)
	}

	if !otpValid(user, req.OTP, s.now()) {
		s.log.Warn().Str("user_id", user.ID).Msg("Invalid or expired OTP")
		return user, errors.New(errors.ErrCodeInvalidOrExpiredOTP, msgInvalidOTP)
	}

	verified, err := s.users.MarkVerified(ctx, user.ID, req.OTP)
	if stderrors.Is(err, repository.ErrStaleOTP) {
		// Lost a race with another verification or a re-registration
		current, gerr := s.users.GetByID(ctx, user.ID)
		if gerr == nil && current.IsVerified {
			return user, errors.New(errors.ErrCodeAlreadyVerified, msgAlreadyVerified)
		}
		return user, errors.New(errors.ErrCodeInvalidOrExpiredOTP, msgInvalidOTP)
	}
	if err != nil {
		return user, errors.Internal("Failed to verify OTP", err)
	}

	return verified, nil
}

// otpValid reports whether code matches the stored one inside the validity window
func otpValid(user *repository.User, code int, now time.Time) bool {
	if user.OTP == nil || user.OTPCreatedAt == nil {
		return false
	}
	if *user.OTP != code {
		return false
	}
	return now.Sub(*user.OTPCreatedAt) <= OTPValidity
}

// hashPassword digests plain, reporting an over-long password against field
// instead of as an internal failure
func hashPassword(plain, field, failMsg string) (string, error) {
	hash, err := password.Hash(plain)
	if stderrors.Is(err, password.ErrPasswordTooLong) {
		return "", errors.Validation("Validation failed", map[string]string{
			field: field + " must be at most 72 characters",
		})
	}
	if err != nil {
		return "", errors.Internal(failMsg, err)
	}
	return hash, nil
}
