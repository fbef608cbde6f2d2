package lookups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const recordColumns = `id, officer_id, type, input, status, credits_used, transaction_id,
       result_summary, requested_by, response_time_ms, created_at`

// PostgresRepo stores the query history in the lookup_queries table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, rec Record) error {
	const q = `
INSERT INTO lookup_queries (
  id, officer_id, type, input, status, credits_used, transaction_id,
  result_summary, requested_by, response_time_ms, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.OfficerID,
		rec.Type,
		rec.Input,
		string(rec.Status),
		rec.CreditsUsed,
		rec.TransactionID,
		rec.ResultSummary,
		rec.RequestedBy,
		rec.ResponseTimeMS,
		rec.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM lookup_queries WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]Record, int, error) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, fmt.Sprintf("$%d", len(args))))
	}
	if f.OfficerID != "" {
		add("officer_id = %s", f.OfficerID)
	}
	if f.Type != "" {
		add("type = %s", f.Type)
	}
	if f.Status != "" {
		add("status = %s", string(f.Status))
	}
	if !f.From.IsZero() {
		add("created_at >= %s", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= %s", f.To)
	}
	if f.Search != "" {
		add("(input ILIKE %[1]s OR result_summary ILIKE %[1]s)", "%"+f.Search+"%")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lookup_queries`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + recordColumns + ` FROM lookup_queries` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	if f.Offset > 0 {
		q += fmt.Sprintf(" OFFSET %d", f.Offset)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var rec Record
	var status string
	err := s.Scan(
		&rec.ID,
		&rec.OfficerID,
		&rec.Type,
		&rec.Input,
		&status,
		&rec.CreditsUsed,
		&rec.TransactionID,
		&rec.ResultSummary,
		&rec.RequestedBy,
		&rec.ResponseTimeMS,
		&rec.CreatedAt,
	)
	rec.Status = Status(status)
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, err
}
