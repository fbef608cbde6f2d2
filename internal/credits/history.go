package credits

import (
	"context"
	"strings"
)

// History lists ledger entries newest first. It never writes, so identical
// queries against an unchanged ledger return identical pages.
func (s *Service) History(ctx context.Context, q HistoryQuery) (Page, error) {
	return s.history(ctx, q, DefaultHistoryLimit)
}

// OfficerHistory lists one officer's entries (default page size 20).
// Unknown officers yield ErrOfficerNotFound rather than an empty page.
func (s *Service) OfficerHistory(ctx context.Context, officerID string, page, limit int) (Page, error) {
	if officerID == "" {
		return Page{}, invalid("officer_id is required")
	}
	if _, err := s.Balance(ctx, officerID); err != nil {
		return Page{}, err
	}
	return s.history(ctx, HistoryQuery{OfficerID: officerID, Page: page, Limit: limit}, DefaultOfficerHistoryLimit)
}

func (s *Service) history(ctx context.Context, q HistoryQuery, defaultLimit int) (Page, error) {
	if q.Action != "" && !q.Action.Valid() {
		return Page{}, invalid("unknown action %q", q.Action)
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return Page{}, invalid("date_to is before date_from")
	}
	page, limit := normalizePage(q.Page, q.Limit, defaultLimit)

	txs, total, err := s.store.ListTransactions(ctx, TransactionFilter{
		OfficerID: q.OfficerID,
		Action:    q.Action,
		From:      q.From,
		To:        q.To,
		Search:    strings.TrimSpace(q.Search),
		Offset:    (page - 1) * limit,
		Limit:     limit,
	})
	if err != nil {
		return Page{}, storeErr("list transactions", q.OfficerID, "", err)
	}
	if txs == nil {
		txs = []Transaction{}
	}
	return Page{Transactions: txs, Pagination: paginate(page, limit, total)}, nil
}

// AggregateStats summarises the ledger over r.
// Issued sums positive entries, used sums the magnitude of negative ones.
func (s *Service) AggregateStats(ctx context.Context, r Range) (Stats, error) {
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return Stats{}, invalid("date_to is before date_from")
	}
	txs, _, err := s.store.ListTransactions(ctx, TransactionFilter{From: r.From, To: r.To})
	if err != nil {
		return Stats{}, storeErr("list transactions", "", "", err)
	}
	return summarize(txs, s.pricePerCredit), nil
}

func summarize(txs []Transaction, pricePerCredit int64) Stats {
	var st Stats
	for _, t := range txs {
		st.TotalTransactions++
		if t.Credits > 0 {
			st.TotalCreditsIssued += t.Credits
		} else {
			st.TotalCreditsUsed += -t.Credits
		}
		switch t.Action {
		case ActionRenewal:
			st.Renewals++
		case ActionTopUp:
			st.TopUps++
		case ActionRefund:
			st.Refunds++
		case ActionDeduction:
			st.Deductions++
		case ActionAdjustment:
			st.Adjustments++
		}
	}
	st.EstimatedRevenue = st.TotalCreditsUsed * pricePerCredit
	return st
}

func normalizePage(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

func paginate(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}
