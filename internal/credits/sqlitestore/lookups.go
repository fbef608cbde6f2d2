package sqlitestore

import (
	"context"
	"errors"
	"strings"

	"pickme-intel/internal/lookups"

	"gorm.io/gorm"
)

// LookupRepo adapts the store to lookups.Repository.
type LookupRepo struct{ db *gorm.DB }

func (s *Store) LookupRepo() LookupRepo { return LookupRepo{db: s.db} }

func (r LookupRepo) Append(ctx context.Context, rec lookups.Record) error {
	row := lookupToRow(rec)
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r LookupRepo) Get(ctx context.Context, id string) (lookups.Record, error) {
	var row lookupRow
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return lookups.Record{}, lookups.ErrNotFound
		}
		return lookups.Record{}, err
	}
	return row.toRecord(), nil
}

func (r LookupRepo) List(ctx context.Context, f lookups.Filter) ([]lookups.Record, int, error) {
	filtered := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&lookupRow{})
		if f.OfficerID != "" {
			q = q.Where("officer_id = ?", f.OfficerID)
		}
		if f.Type != "" {
			q = q.Where("type = ?", f.Type)
		}
		if f.Status != "" {
			q = q.Where("status = ?", string(f.Status))
		}
		if !f.From.IsZero() {
			q = q.Where("created_at >= ?", f.From.UTC())
		}
		if !f.To.IsZero() {
			q = q.Where("created_at <= ?", f.To.UTC())
		}
		if f.Search != "" {
			like := "%" + strings.ToLower(f.Search) + "%"
			q = q.Where("(LOWER(input) LIKE ? OR LOWER(result_summary) LIKE ?)", like, like)
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []lookupRow
	if err := paged(filtered(), f.Offset, f.Limit).Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]lookups.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, int(total), nil
}
