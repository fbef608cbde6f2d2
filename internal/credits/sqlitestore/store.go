// Package sqlitestore is an embedded credits.Store backed by gorm and a pure-Go SQLite driver.
package sqlitestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pickme-intel/internal/audit"
	"pickme-intel/internal/credits"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Store implements credits.Store on SQLite.
//
// SQLite has no row locks, so units of work are serialized in-process and the
// pool is pinned to one connection. LockOfficer is therefore a plain read.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	// mu serializes WithinTx.
	mu sync.Mutex
}

// New opens (or creates) the database at path and migrates the schema.
// An empty path uses a private in-memory database, useful for testing.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		// Create logger to throw away logs
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var dsn string
	if path == "" {
		// Each in-memory store gets its own named database so tests do not share state.
		dsn = fmt.Sprintf("file:credits-%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	} else {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(dir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		// WAL journal mode, wait on busy instead of failing immediately
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	// Configure tracing for GORM
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	for _, model := range migrateModels {
		logger.Debug(fmt.Sprintf("creating table: %T", model))
		if err := db.AutoMigrate(model); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx credits.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(ctx, &sqliteTx{db: gtx})
	})
}

func (s *Store) GetOfficer(ctx context.Context, officerID string) (credits.Officer, error) {
	return getOfficer(s.db.WithContext(ctx), officerID)
}

func (s *Store) ListOfficers(ctx context.Context, f credits.OfficerFilter) ([]credits.Officer, int, error) {
	filtered := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&officerRow{})
		if f.Status != "" {
			q = q.Where("status = ?", string(f.Status))
		}
		if f.Search != "" {
			like := "%" + strings.ToLower(f.Search) + "%"
			q = q.Where("(LOWER(name) LIKE ? OR mobile LIKE ? OR LOWER(badge_number) LIKE ?)", like, like, like)
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []officerRow
	if err := paged(filtered(), f.Offset, f.Limit).Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]credits.Officer, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toOfficer())
	}
	return out, int(total), nil
}

func (s *Store) ListTransactions(ctx context.Context, f credits.TransactionFilter) ([]credits.Transaction, int, error) {
	filtered := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&transactionRow{})
		if f.OfficerID != "" {
			q = q.Where("officer_id = ?", f.OfficerID)
		}
		if f.Action != "" {
			q = q.Where("action = ?", string(f.Action))
		}
		if !f.From.IsZero() {
			q = q.Where("created_at >= ?", f.From.UTC())
		}
		if !f.To.IsZero() {
			q = q.Where("created_at <= ?", f.To.UTC())
		}
		if f.Search != "" {
			like := "%" + strings.ToLower(f.Search) + "%"
			q = q.Where("(LOWER(remarks) LIKE ? OR LOWER(payment_reference) LIKE ?)", like, like)
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []transactionRow
	if err := paged(filtered(), f.Offset, f.Limit).Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]credits.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toTransaction())
	}
	return out, int(total), nil
}

// AuditRepo adapts the store to audit.Repository so audit events live next to the ledger.
type AuditRepo struct{ db *gorm.DB }

func (s *Store) AuditRepo() AuditRepo { return AuditRepo{db: s.db} }

func (r AuditRepo) Append(ctx context.Context, e audit.Event) error {
	row := auditToRow(e)
	return r.db.WithContext(ctx).Create(&row).Error
}

func paged(q *gorm.DB, offset, limit int) *gorm.DB {
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

func getOfficer(db *gorm.DB, officerID string) (credits.Officer, error) {
	var row officerRow
	if err := db.Where("id = ?", officerID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return credits.Officer{}, credits.ErrOfficerNotFound
		}
		return credits.Officer{}, err
	}
	return row.toOfficer(), nil
}

type sqliteTx struct {
	db *gorm.DB
}

func (t *sqliteTx) LockOfficer(_ context.Context, officerID string) (credits.Officer, error) {
	return getOfficer(t.db, officerID)
}

func (t *sqliteTx) WriteBalance(_ context.Context, officerID string, remaining, total int64, at time.Time) error {
	res := t.db.Model(&officerRow{}).Where("id = ?", officerID).Updates(map[string]any{
		"credits_remaining": remaining,
		"total_credits":     total,
		"updated_at":        at.UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return credits.ErrOfficerNotFound
	}
	return nil
}

func (t *sqliteTx) InsertTransaction(_ context.Context, tr credits.Transaction) error {
	row := transactionToRow(tr)
	return t.db.Create(&row).Error
}

func (t *sqliteTx) FindByIdempotencyKey(_ context.Context, officerID, key string) (credits.Transaction, bool, error) {
	var rows []transactionRow
	err := t.db.Where("officer_id = ? AND idempotency_key = ?", officerID, key).Limit(1).Find(&rows).Error
	if err != nil {
		return credits.Transaction{}, false, err
	}
	if len(rows) == 0 {
		return credits.Transaction{}, false, nil
	}
	return rows[0].toTransaction(), true, nil
}

func (t *sqliteTx) SumCredits(_ context.Context, officerID string) (int64, int, error) {
	var agg struct {
		Total int64
		N     int
	}
	err := t.db.Model(&transactionRow{}).
		Select("COALESCE(SUM(credits), 0) AS total, COUNT(*) AS n").
		Where("officer_id = ?", officerID).
		Scan(&agg).Error
	if err != nil {
		return 0, 0, err
	}
	return agg.Total, agg.N, nil
}

func (t *sqliteTx) CountTransactions(ctx context.Context, officerID string) (int, error) {
	_, n, err := t.SumCredits(ctx, officerID)
	return n, err
}

func (t *sqliteTx) CreateOfficer(_ context.Context, o credits.Officer) error {
	row := officerToRow(o)
	if err := t.db.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return credits.ErrDuplicateMobile
		}
		return err
	}
	return nil
}

func (t *sqliteTx) UpdateOfficerStatus(_ context.Context, officerID string, status credits.OfficerStatus, at time.Time) error {
	res := t.db.Model(&officerRow{}).Where("id = ?", officerID).Updates(map[string]any{
		"status":     string(status),
		"updated_at": at.UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return credits.ErrOfficerNotFound
	}
	return nil
}

func (t *sqliteTx) UpdateOfficerProfile(_ context.Context, o credits.Officer) error {
	res := t.db.Model(&officerRow{}).Where("id = ?", o.ID).Updates(map[string]any{
		"name":         o.Name,
		"mobile":       o.Mobile,
		"email":        o.Email,
		"department":   o.Department,
		"rank":         o.Rank,
		"badge_number": o.BadgeNumber,
		"updated_at":   o.UpdatedAt.UTC(),
	})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return credits.ErrDuplicateMobile
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return credits.ErrOfficerNotFound
	}
	return nil
}

func (t *sqliteTx) DeleteOfficer(_ context.Context, officerID string) error {
	res := t.db.Where("id = ?", officerID).Delete(&officerRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return credits.ErrOfficerNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
