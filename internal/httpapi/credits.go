package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"pickme-intel/internal/audit"
	"pickme-intel/internal/credits"

	"github.com/gin-gonic/gin"
)

// --- Mutations ---

type addCreditsRequest struct {
	OfficerID        string `json:"officer_id" binding:"required"`
	Action           string `json:"action" binding:"required"`
	Credits          int64  `json:"credits"`
	PaymentMode      string `json:"payment_mode"`
	PaymentReference string `json:"payment_reference"`
	Remarks          string `json:"remarks"`
}

// AddCredits grants credits (Renewal, Top-up or Refund).
func (h Handlers) AddCredits(c *gin.Context) {
	if !h.requireCredits(c) {
		return
	}
	var req addCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.Credits.Grant(c.Request.Context(), req.OfficerID, credits.Action(strings.TrimSpace(req.Action)), req.Credits,
		h.meta(c, req.PaymentMode, req.PaymentReference, req.Remarks))
	if err != nil {
		respondError(c, err)
		return
	}

	if !res.Replayed {
		h.record(c, audit.EventAddCredits, audit.ResourceOfficer, req.OfficerID, "Credits added", map[string]any{
			"credits_added":  res.Transaction.Credits,
			"new_balance":    res.NewBalance,
			"transaction_id": res.Transaction.ID,
			"action":         string(res.Transaction.Action),
		})
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"transaction": res.Transaction,
		"replayed":    res.Replayed,
		"officer": gin.H{
			"id":               req.OfficerID,
			"previous_balance": res.PreviousBalance,
			"new_balance":      res.NewBalance,
			"total_credits":    res.TotalCredits,
			"credits_added":    res.Transaction.Credits,
		},
	})
}

type deductCreditsRequest struct {
	OfficerID        string `json:"officer_id" binding:"required"`
	Credits          int64  `json:"credits"`
	PaymentMode      string `json:"payment_mode"`
	PaymentReference string `json:"payment_reference"`
	Remarks          string `json:"remarks"`
}

// DeductCredits removes credits for a manual correction.
func (h Handlers) DeductCredits(c *gin.Context) {
	if !h.requireCredits(c) {
		return
	}
	var req deductCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.Credits.Deduct(c.Request.Context(), req.OfficerID, req.Credits,
		h.meta(c, req.PaymentMode, req.PaymentReference, req.Remarks))
	if err != nil {
		respondError(c, err)
		return
	}

	if !res.Replayed {
		h.record(c, audit.EventDeductCredits, audit.ResourceOfficer, req.OfficerID, "Credits deducted", map[string]any{
			"credits_deducted": -res.Transaction.Credits,
			"new_balance":      res.NewBalance,
			"transaction_id":   res.Transaction.ID,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction": res.Transaction,
		"replayed":    res.Replayed,
		"officer": gin.H{
			"id":               req.OfficerID,
			"previous_balance": res.PreviousBalance,
			"new_balance":      res.NewBalance,
			"credits_deducted": -res.Transaction.Credits,
		},
	})
}

type adjustCreditsRequest struct {
	OfficerID    string `json:"officer_id" binding:"required"`
	Credits      int64  `json:"credits"`
	Remarks      string `json:"remarks" binding:"required"`
	CorrectTotal bool   `json:"correct_total"`
}

// AdjustCredits posts a signed administrative correction.
func (h Handlers) AdjustCredits(c *gin.Context) {
	if !h.requireCredits(c) {
		return
	}
	var req adjustCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	meta := h.meta(c, "", "", req.Remarks)
	meta.CorrectTotal = req.CorrectTotal
	res, err := h.Credits.Adjust(c.Request.Context(), req.OfficerID, req.Credits, meta)
	if err != nil {
		respondError(c, err)
		return
	}

	if !res.Replayed {
		h.record(c, audit.EventAdjustCredits, audit.ResourceOfficer, req.OfficerID, "Credits adjusted", map[string]any{
			"credits":        res.Transaction.Credits,
			"new_balance":    res.NewBalance,
			"total_credits":  res.TotalCredits,
			"transaction_id": res.Transaction.ID,
			"correct_total":  req.CorrectTotal,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction": res.Transaction,
		"replayed":    res.Replayed,
		"officer": gin.H{
			"id":               req.OfficerID,
			"previous_balance": res.PreviousBalance,
			"new_balance":      res.NewBalance,
			"total_credits":    res.TotalCredits,
		},
	})
}

// --- Reads ---

type transactionsQuery struct {
	dateRange
	OfficerID string `form:"officer_id"`
	Action    string `form:"action"`
	Search    string `form:"search"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

// ListTransactions returns the filtered ledger, newest first.
func (h Handlers) ListTransactions(c *gin.Context) {
	if !h.requireCredits(c) {
		return
	}
	var q transactionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	r, err := q.parse()
	if err != nil {
		abort(c, http.StatusBadRequest, CodeValidation, "date_from/date_to must be YYYY-MM-DD or RFC 3339")
		return
	}

	page, err := h.Credits.History(c.Request.Context(), credits.HistoryQuery{
		OfficerID: strings.TrimSpace(q.OfficerID),
		Action:    credits.Action(q.Action),
		From:      r.From,
		To:        r.To,
		Search:    strings.TrimSpace(q.Search),
		Page:      q.Page,
		Limit:     q.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

type pageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// OfficerTransactions returns one officer's ledger.
func (h Handlers) OfficerTransactions(c *gin.Context) {
	if !h.requireCredits(c) {
		return
	}
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	page, err := h.Credits.OfficerHistory(c.Request.Context(), c.Param("officer_id"), q.Page, q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Stats aggregates the ledger over an optional date range.
func (h Handlers) Stats(c *gin.Context) {
	if !h.requireCredits(c) {
		return
	}
	var q dateRange
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	r, err := q.parse()
	if err != nil {
		abort(c, http.StatusBadRequest, CodeValidation, "date_from/date_to must be YYYY-MM-DD or RFC 3339")
		return
	}
	st, err := h.Credits.AggregateStats(c.Request.Context(), r)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": st})
}

// Reconcile reports whether the cached balance matches the ledger.
// Drift is reported in the body with 200; it is a finding, not a request failure.
func (h Handlers) Reconcile(c *gin.Context) {
	if !h.requireCredits(c) {
		return
	}
	rec, err := h.Credits.Reconcile(c.Request.Context(), c.Param("officer_id"))
	if err != nil && !errors.Is(err, credits.ErrConsistencyViolation) {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reconciliation": rec})
}
