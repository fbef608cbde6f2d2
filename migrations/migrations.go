// Package migrations holds the Postgres schema and applies it.
package migrations

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed postgres.sql
var postgresSchema string

// Postgres returns the schema script.
func Postgres() string { return postgresSchema }

// Apply executes the schema in one transaction. Statements are idempotent.
func Apply(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return tx.Commit()
}
