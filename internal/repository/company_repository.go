package repository

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/errors"
)

const companyColumns = ` id, name, is_approved, owner_id, created_at, updated_at`

// querier is satisfied by both the pool and a transaction
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CompanyRepository handles company data operations
type CompanyRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *pgxpool.Pool, log *logger.Logger) *CompanyRepository {
	return &CompanyRepository{db: db, log: log}
}

// GetCompany retrieves a company by ID
func (r *CompanyRepository) GetCompany(ctx context.Context, id string) (*Company, error) {
	if !isUUID(id) {
		return nil, errors.NotFound("company", id)
	}
	company, err := scanCompany(r.db.QueryRow(ctx, `SELECT`+companyColumns+` FROM companies WHERE id = $1`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("company", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get company")
	}

	return company, nil
}

func insertCompany(ctx context.Context, q querier, company *Company) error {
	query := `
		INSERT INTO companies (id, name, is_approved, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	return q.QueryRow(ctx, query, company.ID, company.Name, company.IsApproved, company.OwnerID).
		Scan(&company.CreatedAt, &company.UpdatedAt)
}

func renameCompany(ctx context.Context, q querier, id, name string) (*Company, error) {
	query := `
		UPDATE companies SET name = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING` + companyColumns
	return scanCompany(q.QueryRow(ctx, query, id, name))
}

func scanCompany(row pgx.Row) (*Company, error) {
	company := &Company{}
	err := row.Scan(
		&company.ID,
		&company.Name,
		&company.IsApproved,
		&company.OwnerID,
		&company.CreatedAt,
		&company.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return company, nil
}
