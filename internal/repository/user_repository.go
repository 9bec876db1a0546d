package repository

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/errors"
)

const uniqueViolation = "23505"

var (
	// ErrEmailTaken is returned when an insert collides with an existing email
	ErrEmailTaken = errors.New(errors.ErrCodeAlreadyRegistered, "Email already Registered")
	// ErrStaleOTP is returned when a verification lost a race with a verify or re-registration
	ErrStaleOTP = stderrors.New("otp no longer pending")
	// ErrNotPending is returned when a pending registration was verified concurrently
	ErrNotPending = stderrors.New("user is no longer pending verification")
)

const userColumns = `
	id, email, name, password_hash, role, is_verified, otp, otp_created_at,
	last_login_at, session_token, company_id, created_at, updated_at`

// UserRepository handles user data operations
type UserRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool, log *logger.Logger) *UserRepository {
	return &UserRepository{db: db, log: log}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	if !isUUID(id) {
		return nil, errors.NotFound("user", id)
	}
	query := `SELECT` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("user", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get user")
	}

	return user, nil
}

// GetByEmail retrieves a user by email. The match is exact.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("user", email)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get user by email")
	}

	return user, nil
}

// MarkVerified flips a pending user to verified and clears the OTP, but only while
// the stored code still equals otp.
func (r *UserRepository) MarkVerified(ctx context.Context, id string, otp int) (*User, error) {
	query := `
		UPDATE users
		SET is_verified = TRUE, otp = NULL, otp_created_at = NULL, updated_at = NOW()
		WHERE id = $1 AND is_verified = FALSE AND otp = $2
		RETURNING` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, id, otp))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStaleOTP
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to verify user")
	}

	return user, nil
}

// RecordLogin stores the login time and the token just issued
func (r *UserRepository) RecordLogin(ctx context.Context, id, sessionToken string, at time.Time) (*User, error) {
	if !isUUID(id) {
		return nil, errors.NotFound("user", id)
	}
	query := `
		UPDATE users
		SET last_login_at = $2, session_token = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, id, at, sessionToken))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("user", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to update last login")
	}

	return user, nil
}

// UpdatePassword replaces the stored password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if !isUUID(id) {
		return errors.NotFound("user", id)
	}
	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update password")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("user", id)
	}

	return nil
}

// isUUID reports whether id can match a UUID key column. Anything else would
// fail to encode in pgx, so callers treat it as a missing row.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Role,
		&user.IsVerified,
		&user.OTP,
		&user.OTPCreatedAt,
		&user.LastLoginAt,
		&user.SessionToken,
		&user.CompanyID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
