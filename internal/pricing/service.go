package pricing

import (
	"context"
	"errors"
	"fmt"
)

// Service resolves what a lookup costs.
//
// Contract:
// - Pure calculation + repository lookups.
// - Provider integrations are not consulted; lookups themselves are mocked upstream.
type Service struct {
	repo CostRepository
}

func NewService(repo CostRepository) *Service {
	return &Service{repo: repo}
}

var (
	ErrUnknownQueryType  = errors.New("unknown query type")
	ErrInvalidPricingReq = errors.New("invalid pricing request")
)

// Cost returns the credit cost of one lookup of the given type.
func (s *Service) Cost(ctx context.Context, queryType string) (LookupCost, error) {
	t := ParseQueryType(queryType)
	if t == "" {
		return LookupCost{}, ErrInvalidPricingReq
	}

	c, ok, err := s.repo.FindLookupCost(ctx, t)
	if err != nil {
		return LookupCost{}, err
	}
	if !ok {
		return LookupCost{}, fmt.Errorf("%w: %q", ErrUnknownQueryType, queryType)
	}
	if c.Credits < 0 {
		return LookupCost{}, fmt.Errorf("%w: negative cost for %s", ErrInvalidPricingReq, t)
	}
	return c, nil
}

// Catalog lists all priced lookup types.
func (s *Service) Catalog(ctx context.Context) ([]LookupCost, error) {
	return s.repo.ListLookupCosts(ctx)
}

// CostRepository abstracts the cost table.
// Implementation can be in-memory, Postgres, cached, etc.
type CostRepository interface {
	FindLookupCost(ctx context.Context, t QueryType) (LookupCost, bool, error)
	ListLookupCosts(ctx context.Context) ([]LookupCost, error)
}
