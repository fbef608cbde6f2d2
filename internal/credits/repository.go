package credits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pickme-intel/pkg/utils"
)

// NOTE: PostgresStore assumes the tables created by migrations/postgres.sql:
// - officers (credits_remaining projection, unique mobile)
// - credit_transactions (immutable append-only, officer_id ON DELETE RESTRICT)
// plus a partial unique index on (officer_id, idempotency_key).

const officersMobileKey = "officers_mobile_key"

// txRetryAttempts bounds re-runs on serialization failure or deadlock.
const txRetryAttempts = 3

// PostgresStore is the production Store over database/sql with the pgx driver.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return utils.WithTxRetry(ctx, p.db, &sql.TxOptions{}, txRetryAttempts, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, pgTx{tx: tx})
	})
}

const officerColumns = `id, name, mobile, email, department, rank, badge_number, status,
       credits_remaining, total_credits, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOfficer(r rowScanner) (Officer, error) {
	var o Officer
	var status string
	if err := r.Scan(
		&o.ID,
		&o.Name,
		&o.Mobile,
		&o.Email,
		&o.Department,
		&o.Rank,
		&o.BadgeNumber,
		&status,
		&o.CreditsRemaining,
		&o.TotalCredits,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Officer{}, ErrOfficerNotFound
		}
		return Officer{}, err
	}
	o.Status = OfficerStatus(status)
	return o, nil
}

const transactionColumns = `id, officer_id, action, credits, previous_balance, new_balance,
       payment_mode, payment_reference, remarks, processed_by, idempotency_key, created_at`

func scanTransaction(r rowScanner) (Transaction, error) {
	var t Transaction
	var action string
	if err := r.Scan(
		&t.ID,
		&t.OfficerID,
		&action,
		&t.Credits,
		&t.PreviousBalance,
		&t.NewBalance,
		&t.PaymentMode,
		&t.PaymentReference,
		&t.Remarks,
		&t.ProcessedBy,
		&t.IdempotencyKey,
		&t.CreatedAt,
	); err != nil {
		return Transaction{}, err
	}
	t.Action = Action(action)
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func (p *PostgresStore) GetOfficer(ctx context.Context, officerID string) (Officer, error) {
	q := `SELECT ` + officerColumns + ` FROM officers WHERE id = $1`
	return scanOfficer(p.db.QueryRowContext(ctx, q, officerID))
}

func (p *PostgresStore) ListOfficers(ctx context.Context, f OfficerFilter) ([]Officer, int, error) {
	var w where
	if f.Status != "" {
		w.add("status = %s", string(f.Status))
	}
	if f.Search != "" {
		w.add("(name ILIKE %[1]s OR mobile ILIKE %[1]s OR badge_number ILIKE %[1]s)", "%"+f.Search+"%")
	}

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM officers`+w.clause(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + officerColumns + ` FROM officers` + w.clause() + ` ORDER BY created_at DESC, id DESC` + w.page(f.Offset, f.Limit)
	rows, err := p.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Officer
	for rows.Next() {
		o, err := scanOfficer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (p *PostgresStore) ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, int, error) {
	var w where
	if f.OfficerID != "" {
		w.add("officer_id = %s", f.OfficerID)
	}
	if f.Action != "" {
		w.add("action = %s", string(f.Action))
	}
	if !f.From.IsZero() {
		w.add("created_at >= %s", f.From)
	}
	if !f.To.IsZero() {
		w.add("created_at <= %s", f.To)
	}
	if f.Search != "" {
		w.add("(remarks ILIKE %[1]s OR payment_reference ILIKE %[1]s)", "%"+f.Search+"%")
	}

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credit_transactions`+w.clause(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + transactionColumns + ` FROM credit_transactions` + w.clause() +
		` ORDER BY created_at DESC, id DESC` + w.page(f.Offset, f.Limit)
	rows, err := p.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

type pgTx struct {
	tx *sql.Tx
}

func (t pgTx) LockOfficer(ctx context.Context, officerID string) (Officer, error) {
	// Lock the officer row to serialize concurrent ledger operations per officer.
	q := `SELECT ` + officerColumns + ` FROM officers WHERE id = $1 FOR UPDATE`
	return scanOfficer(t.tx.QueryRowContext(ctx, q, officerID))
}

func (t pgTx) WriteBalance(ctx context.Context, officerID string, remaining, total int64, at time.Time) error {
	const q = `
UPDATE officers
SET credits_remaining = $2, total_credits = $3, updated_at = $4
WHERE id = $1
`
	res, err := t.tx.ExecContext(ctx, q, officerID, remaining, total, at)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (t pgTx) InsertTransaction(ctx context.Context, tr Transaction) error {
	const q = `
INSERT INTO credit_transactions (
  id, officer_id, action, credits, previous_balance, new_balance,
  payment_mode, payment_reference, remarks, processed_by, idempotency_key, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`
	_, err := t.tx.ExecContext(ctx, q,
		tr.ID,
		tr.OfficerID,
		string(tr.Action),
		tr.Credits,
		tr.PreviousBalance,
		tr.NewBalance,
		tr.PaymentMode,
		tr.PaymentReference,
		tr.Remarks,
		tr.ProcessedBy,
		tr.IdempotencyKey,
		tr.CreatedAt,
	)
	return err
}

func (t pgTx) FindByIdempotencyKey(ctx context.Context, officerID, key string) (Transaction, bool, error) {
	q := `SELECT ` + transactionColumns + ` FROM credit_transactions
WHERE officer_id = $1 AND idempotency_key = $2
LIMIT 1`
	tr, err := scanTransaction(t.tx.QueryRowContext(ctx, q, officerID, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, false, nil
		}
		return Transaction{}, false, err
	}
	return tr, true, nil
}

func (t pgTx) SumCredits(ctx context.Context, officerID string) (int64, int, error) {
	const q = `SELECT COALESCE(SUM(credits), 0), COUNT(*) FROM credit_transactions WHERE officer_id = $1`
	var sum int64
	var n int
	if err := t.tx.QueryRowContext(ctx, q, officerID).Scan(&sum, &n); err != nil {
		return 0, 0, err
	}
	return sum, n, nil
}

func (t pgTx) CountTransactions(ctx context.Context, officerID string) (int, error) {
	_, n, err := t.SumCredits(ctx, officerID)
	return n, err
}

func (t pgTx) CreateOfficer(ctx context.Context, o Officer) error {
	const q = `
INSERT INTO officers (
  id, name, mobile, email, department, rank, badge_number, status,
  credits_remaining, total_credits, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`
	_, err := t.tx.ExecContext(ctx, q,
		o.ID,
		o.Name,
		o.Mobile,
		o.Email,
		o.Department,
		o.Rank,
		o.BadgeNumber,
		string(o.Status),
		o.CreditsRemaining,
		o.TotalCredits,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if utils.IsUniqueViolation(err, officersMobileKey) {
		return ErrDuplicateMobile
	}
	return err
}

func (t pgTx) UpdateOfficerStatus(ctx context.Context, officerID string, status OfficerStatus, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE officers SET status = $2, updated_at = $3 WHERE id = $1`, officerID, string(status), at)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (t pgTx) UpdateOfficerProfile(ctx context.Context, o Officer) error {
	const q = `
UPDATE officers
SET name = $2, mobile = $3, email = $4, department = $5, rank = $6, badge_number = $7, updated_at = $8
WHERE id = $1
`
	res, err := t.tx.ExecContext(ctx, q,
		o.ID,
		o.Name,
		o.Mobile,
		o.Email,
		o.Department,
		o.Rank,
		o.BadgeNumber,
		o.UpdatedAt,
	)
	if utils.IsUniqueViolation(err, officersMobileKey) {
		return ErrDuplicateMobile
	}
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (t pgTx) DeleteOfficer(ctx context.Context, officerID string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM officers WHERE id = $1`, officerID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOfficerNotFound
	}
	return nil
}

// where accumulates AND-ed conditions with positional placeholders.
// Each condition uses %s (or %[1]s when repeated) for its single argument.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (w *where) page(offset, limit int) string {
	var b strings.Builder
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	if offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", offset)
	}
	return b.String()
}
