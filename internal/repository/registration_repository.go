package repository

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/errors"
)

// RegistrationRepository writes the user and company rows of a registration together.
// A user and its company reference each other, so the user is inserted first, the
// company second, and the user's company_id is backfilled; all in one transaction.
type RegistrationRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewRegistrationRepository creates a new registration repository
func NewRegistrationRepository(db *pgxpool.Pool, log *logger.Logger) *RegistrationRepository {
	return &RegistrationRepository{db: db, log: log}
}

// CreatePending inserts an unverified user owning a new company. IDs and timestamps
// are filled in on both structs. Returns ErrEmailTaken on a duplicate email.
func (r *RegistrationRepository) CreatePending(ctx context.Context, user *User, company *Company) error {
	user.ID = uuid.New().String()
	company.ID = uuid.New().String()
	company.OwnerID = &user.ID

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		insertUser := `
			INSERT INTO users (id, email, name, password_hash, role, is_verified, otp, otp_created_at)
			VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)
			RETURNING created_at, updated_at
		`
		if err := tx.QueryRow(ctx, insertUser,
			user.ID,
			user.Email,
			user.Name,
			user.PasswordHash,
			user.Role,
			user.OTP,
			user.OTPCreatedAt,
		).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
			return err
		}

		if err := insertCompany(ctx, tx, company); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `UPDATE users SET company_id = $2 WHERE id = $1`, user.ID, company.ID)
		return err
	})
	if err != nil {
		user.ID, company.ID, company.OwnerID = "", "", nil
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create user")
	}

	user.CompanyID = &company.ID
	user.IsVerified = false
	return nil
}

// RefreshPending overwrites the credentials and OTP of a still-unverified user and
// renames its company, creating and linking one if the user has none.
// Returns ErrNotPending if the user was verified in the meantime.
func (r *RegistrationRepository) RefreshPending(ctx context.Context, user *User, companyName string) (*Company, error) {
	var company *Company

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		updateUser := `
			UPDATE users
			SET name = $2, password_hash = $3, role = $4, otp = $5, otp_created_at = $6, updated_at = NOW()
			WHERE id = $1 AND is_verified = FALSE
			RETURNING company_id, updated_at
		`
		if err := tx.QueryRow(ctx, updateUser,
			user.ID,
			user.Name,
			user.PasswordHash,
			user.Role,
			user.OTP,
			user.OTPCreatedAt,
		).Scan(&user.CompanyID, &user.UpdatedAt); err != nil {
			if stderrors.Is(err, pgx.ErrNoRows) {
				return ErrNotPending
			}
			return err
		}

		if user.CompanyID != nil {
			renamed, err := renameCompany(ctx, tx, *user.CompanyID, companyName)
			if err == nil {
				company = renamed
				return nil
			}
			if !stderrors.Is(err, pgx.ErrNoRows) {
				return err
			}
		}

		company = &Company{
			ID:         uuid.New().String(),
			Name:       companyName,
			IsApproved: true,
			OwnerID:    &user.ID,
		}
		if err := insertCompany(ctx, tx, company); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET company_id = $2 WHERE id = $1`, user.ID, company.ID); err != nil {
			return err
		}
		user.CompanyID = &company.ID
		return nil
	})
	if err != nil {
		if stderrors.Is(err, ErrNotPending) {
			return nil, ErrNotPending
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to update pending user")
	}

	return company, nil
}
