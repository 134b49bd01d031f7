package database

import (
	"context"
	_ "embed"

	"github.com/zatekoja/clearlink/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the dispatch tables if they do not exist
func EnsureSchema(ctx context.Context, client *postgres.Client) error {
	if _, err := client.DB().ExecContext(ctx, schemaSQL); err != nil {
		return apperrors.NewInternalError("failed to apply schema", err)
	}
	return nil
}
