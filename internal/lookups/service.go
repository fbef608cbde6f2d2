package lookups

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

var (
	ErrNotFound      = errors.New("lookup not found")
	ErrInvalidRecord = errors.New("lookups: invalid record")
	ErrInvalidQuery  = errors.New("lookups: invalid query")
)

// Repository persists the query history. It is append-only.
type Repository interface {
	Append(ctx context.Context, r Record) error
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, f Filter) ([]Record, int, error)
}

// Service records and reads executed lookups.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Record appends r, filling ID and CreatedAt when they are unset.
func (s *Service) Record(ctx context.Context, r Record) (Record, error) {
	if r.OfficerID == "" || r.Type == "" {
		return Record{}, fmt.Errorf("%w: officer_id and type are required", ErrInvalidRecord)
	}
	if r.Status == "" {
		r.Status = StatusSuccess
	}
	if !r.Status.Valid() {
		return Record{}, fmt.Errorf("%w: status %q", ErrInvalidRecord, r.Status)
	}
	if r.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return Record{}, err
		}
		r.ID = id.String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.clock().UTC()
	}
	if err := s.repo.Append(ctx, r); err != nil {
		return Record{}, fmt.Errorf("lookups: append %s: %w", r.ID, err)
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	if id == "" {
		return Record{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// List returns one page of history, newest first.
func (s *Service) List(ctx context.Context, q Query) (Page, error) {
	f, err := q.filter()
	if err != nil {
		return Page{}, err
	}
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	f.Offset, f.Limit = (page-1)*limit, limit

	recs, total, err := s.repo.List(ctx, f)
	if err != nil {
		return Page{}, fmt.Errorf("lookups: list: %w", err)
	}
	if recs == nil {
		recs = []Record{}
	}
	return Page{
		Queries:    recs,
		Pagination: Pagination{Page: page, Limit: limit, Total: total, Pages: (total + limit - 1) / limit},
	}, nil
}

// Summarize aggregates every record matching q. Paging fields are ignored.
func (s *Service) Summarize(ctx context.Context, q Query) (Summary, error) {
	f, err := q.filter()
	if err != nil {
		return Summary{}, err
	}
	recs, _, err := s.repo.List(ctx, f)
	if err != nil {
		return Summary{}, fmt.Errorf("lookups: list: %w", err)
	}

	sum := Summary{ByType: map[string]int{}}
	var elapsed int64
	for _, r := range recs {
		sum.TotalQueries++
		sum.ByType[r.Type]++
		sum.TotalCreditsUsed += r.CreditsUsed
		elapsed += r.ResponseTimeMS
		switch r.Status {
		case StatusSuccess:
			sum.Successful++
		case StatusFailed:
			sum.Failed++
		case StatusPending:
			sum.Pending++
		}
	}
	if sum.TotalQueries > 0 {
		sum.AverageResponseTimeMS = elapsed / int64(sum.TotalQueries)
	}
	return sum, nil
}

func (q Query) filter() (Filter, error) {
	if q.Status != "" && !q.Status.Valid() {
		return Filter{}, fmt.Errorf("%w: status must be Success, Failed or Pending, got %q", ErrInvalidQuery, q.Status)
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return Filter{}, fmt.Errorf("%w: date_to is before date_from", ErrInvalidQuery)
	}
	return Filter{
		OfficerID: q.OfficerID,
		Type:      strings.ToUpper(strings.TrimSpace(q.Type)),
		Status:    q.Status,
		From:      q.From,
		To:        q.To,
		Search:    strings.TrimSpace(q.Search),
	}, nil
}
