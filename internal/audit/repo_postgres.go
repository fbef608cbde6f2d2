package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends events to the audit_logs table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_logs (
  id, action, actor_user_id, actor_role, ip_address,
  resource_type, resource_id, message, metadata, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb,$10)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Action),
		e.ActorUserID,
		e.ActorRole,
		e.IPAddress,
		e.ResourceType,
		e.ResourceID,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
