package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pickme-intel/internal/audit"
	"pickme-intel/internal/auth"
	"pickme-intel/internal/credits"
	"pickme-intel/internal/lookups"
	"pickme-intel/internal/pricing"
	"pickme-intel/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const ctxKeyQuery = "httpapi.query"

type queryRequest struct {
	Type  string `json:"type" binding:"required"`
	Input string `json:"input" binding:"required"`
}

type pricedQuery struct {
	req  queryRequest
	cost pricing.LookupCost
}

// QueryCost resolves the credit cost of the lookup in the request body.
// It is the cost function for credits.RequireSufficientCredits, so the body is
// bound with ShouldBindBodyWithJSON to leave it readable for the handler.
func (h Handlers) QueryCost(c *gin.Context) (int64, error) {
	if h.Pricing == nil {
		return 0, fmt.Errorf("%w: pricing not configured", pricing.ErrInvalidPricingReq)
	}
	var req queryRequest
	if err := c.ShouldBindBodyWithJSON(&req); err != nil {
		return 0, err
	}
	cost, err := h.Pricing.Cost(c.Request.Context(), req.Type)
	if err != nil {
		return 0, err
	}
	c.Set(ctxKeyQuery, pricedQuery{req: req, cost: cost})
	return cost.Credits, nil
}

// RunQuery charges the officer for a lookup, records it in the query history
// and returns a mocked result. Chain after credits.RequireSufficientCredits(…, h.QueryCost).
func (h Handlers) RunQuery(c *gin.Context) {
	if !h.requireCredits(c) {
		return
	}
	pq, ok := c.Get(ctxKeyQuery)
	if !ok {
		if _, err := h.QueryCost(c); err != nil {
			respondError(c, err)
			return
		}
		pq, _ = c.Get(ctxKeyQuery)
	}
	q := pq.(pricedQuery)
	ctx := c.Request.Context()
	officerID := c.Param("officer_id")
	queryID := newQueryID()
	started := h.now()

	rec := lookups.Record{
		OfficerID: officerID,
		Type:      string(q.cost.Type),
		Input:     strings.TrimSpace(q.req.Input),
	}
	rec.RequestedBy, _ = auth.UserID(ctx)

	var remaining *int64
	if !q.cost.Free() {
		meta := h.meta(c, "Query", queryID, fmt.Sprintf("%s lookup", q.cost.Type))
		res, err := h.Credits.Deduct(ctx, officerID, q.cost.Credits, meta)
		if err != nil {
			if errors.Is(err, credits.ErrInsufficientCredits) {
				rec.ID, rec.Status, rec.ResultSummary = queryID, lookups.StatusFailed, "Insufficient credits"
				h.saveLookup(c, rec)
			}
			respondError(c, err)
			return
		}
		if res.Replayed {
			queryID = res.Transaction.PaymentReference
			if h.Lookups != nil {
				if prev, err := h.Lookups.Get(ctx, queryID); err == nil {
					c.JSON(http.StatusOK, gin.H{"query": prev, "replayed": true})
					return
				}
			}
		}
		remaining = &res.NewBalance
		rec.TransactionID = res.Transaction.ID
		rec.CreditsUsed = q.cost.Credits
	} else {
		o, err := h.Credits.Balance(ctx, officerID)
		if err != nil {
			respondError(c, err)
			return
		}
		remaining = &o.CreditsRemaining
	}

	result := mockLookup(q.cost.Type, rec.Input)
	rec.ID = queryID
	rec.Status = lookups.StatusSuccess
	rec.ResultSummary = fmt.Sprintf("%s lookup completed (%s)", q.cost.Type, result["source"])
	rec.ResponseTimeMS = h.now().Sub(started).Milliseconds()
	h.saveLookup(c, rec)

	h.record(c, audit.EventLookupQuery, audit.ResourceOfficer, officerID, "Lookup executed", map[string]any{
		"query_id":       queryID,
		"type":           rec.Type,
		"credits_used":   rec.CreditsUsed,
		"transaction_id": rec.TransactionID,
	})

	c.JSON(http.StatusOK, gin.H{
		"query": gin.H{
			"id":                queryID,
			"officer_id":        officerID,
			"type":              q.cost.Type,
			"tier":              q.cost.Tier,
			"input":             rec.Input,
			"status":            rec.Status,
			"credits_used":      rec.CreditsUsed,
			"credits_remaining": *remaining,
			"transaction_id":    rec.TransactionID,
			"response_time_ms":  rec.ResponseTimeMS,
			"result":            result,
		},
	})
}

// newQueryID returns a time-ordered id so history ties sort by arrival.
func newQueryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// saveLookup appends to the query history. The charge has already happened,
// so failures are logged and never fail the request.
func (h Handlers) saveLookup(c *gin.Context, rec lookups.Record) {
	if h.Lookups == nil {
		return
	}
	if _, err := h.Lookups.Record(c.Request.Context(), rec); err != nil {
		logger.FromGin(c).Warn("lookup history append failed", "query_id", rec.ID, "officer_id", rec.OfficerID, "err", err)
	}
}

func (h Handlers) requireLookups(c *gin.Context) bool {
	if h.Lookups == nil {
		abort(c, http.StatusInternalServerError, CodeNotConfigured, "query history not configured")
		return false
	}
	return true
}

type queriesQuery struct {
	dateRange
	OfficerID string `form:"officer_id"`
	Type      string `form:"type"`
	Status    string `form:"status" binding:"omitempty,oneof=Success Failed Pending"`
	Search    string `form:"search"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

func (q queriesQuery) toQuery() (lookups.Query, error) {
	r, err := q.parse()
	if err != nil {
		return lookups.Query{}, err
	}
	return lookups.Query{
		OfficerID: strings.TrimSpace(q.OfficerID),
		Type:      q.Type,
		Status:    lookups.Status(q.Status),
		From:      r.From,
		To:        r.To,
		Search:    q.Search,
		Page:      q.Page,
		Limit:     q.Limit,
	}, nil
}

// ListQueries returns the query history, newest first.
func (h Handlers) ListQueries(c *gin.Context) {
	if !h.requireLookups(c) {
		return
	}
	var q queriesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	lq, err := q.toQuery()
	if err != nil {
		abort(c, http.StatusBadRequest, CodeValidation, "date_from/date_to must be YYYY-MM-DD or RFC 3339")
		return
	}
	page, err := h.Lookups.List(c.Request.Context(), lq)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h Handlers) GetQuery(c *gin.Context) {
	if !h.requireLookups(c) {
		return
	}
	rec, err := h.Lookups.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": rec})
}

// QueryStats summarises the query history under the same filters as ListQueries.
func (h Handlers) QueryStats(c *gin.Context) {
	if !h.requireLookups(c) {
		return
	}
	var q queriesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	lq, err := q.toQuery()
	if err != nil {
		abort(c, http.StatusBadRequest, CodeValidation, "date_from/date_to must be YYYY-MM-DD or RFC 3339")
		return
	}
	sum, err := h.Lookups.Summarize(c.Request.Context(), lq)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": sum})
}

// Catalog lists lookup prices.
func (h Handlers) Catalog(c *gin.Context) {
	if h.Pricing == nil {
		abort(c, http.StatusInternalServerError, CodeNotConfigured, "pricing not configured")
		return
	}
	list, err := h.Pricing.Catalog(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lookups": list})
}

// mockLookup stands in for the provider integrations, which are out of scope.
func mockLookup(t pricing.QueryType, input string) gin.H {
	input = strings.TrimSpace(input)
	switch t {
	case pricing.QueryRC:
		return gin.H{"registration_number": strings.ToUpper(input), "owner": "MOCK OWNER", "vehicle_class": "LMV", "source": "mock"}
	case pricing.QueryCellID:
		return gin.H{"cell_id": input, "operator": "MOCK", "approx_location": "unavailable", "source": "mock"}
	case pricing.QueryFASTag:
		return gin.H{"tag_or_vehicle": strings.ToUpper(input), "last_toll_plaza": "unavailable", "source": "mock"}
	case pricing.QueryPro:
		return gin.H{"subject": input, "linked_records": []string{}, "source": "mock"}
	default:
		return gin.H{"query": input, "matches": []string{}, "source": "mock"}
	}
}
