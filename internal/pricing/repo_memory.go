package pricing

import (
	"context"
	"sort"
	"sync"
)

// DefaultCosts is the published lookup price list.
var DefaultCosts = []LookupCost{
	{Type: QueryOSINT, Credits: 0, Tier: TierFree},
	{Type: QueryRC, Credits: 1, Tier: TierPremium},
	{Type: QueryCellID, Credits: 1, Tier: TierPremium},
	{Type: QueryPro, Credits: 2, Tier: TierPremium},
	{Type: QueryFASTag, Credits: 1, Tier: TierPremium},
}

// MemoryRepo is an in-memory cost table.
type MemoryRepo struct {
	mu    sync.RWMutex
	costs map[QueryType]LookupCost
}

// NewMemoryRepo seeds the table with costs, or DefaultCosts when none are given.
func NewMemoryRepo(costs ...LookupCost) *MemoryRepo {
	if len(costs) == 0 {
		costs = DefaultCosts
	}
	r := &MemoryRepo{costs: make(map[QueryType]LookupCost, len(costs))}
	for _, c := range costs {
		r.costs[c.Type] = c
	}
	return r
}

func (r *MemoryRepo) FindLookupCost(ctx context.Context, t QueryType) (LookupCost, bool, error) {
	if err := ctx.Err(); err != nil {
		return LookupCost{}, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.costs[t]
	return c, ok, nil
}

func (r *MemoryRepo) ListLookupCosts(ctx context.Context) ([]LookupCost, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]LookupCost, 0, len(r.costs))
	for _, c := range r.costs {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}
