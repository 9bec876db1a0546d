package repository

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/errors"
)

//go:embed schema.sql
var schema string

// Migrate creates the identity tables if they do not exist
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	// No arguments: pgx sends this over the simple protocol, which allows several statements
	if _, err := db.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to apply schema")
	}
	return nil
}
