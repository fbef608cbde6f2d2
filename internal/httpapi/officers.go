package httpapi

import (
	"net/http"
	"strings"

	"pickme-intel/internal/audit"
	"pickme-intel/internal/credits"
	"pickme-intel/internal/lookups"

	"github.com/gin-gonic/gin"
)

type createOfficerRequest struct {
	Name        string `json:"name" binding:"required"`
	Mobile      string `json:"mobile" binding:"required"`
	Email       string `json:"email" binding:"omitempty,email"`
	Department  string `json:"department"`
	Rank        string `json:"rank"`
	BadgeNumber string `json:"badge_number"`
	Status      string `json:"status" binding:"omitempty,oneof=Active Suspended Inactive"`
	// InitialCredits falls back to the configured default when omitted.
	InitialCredits   *int64 `json:"initial_credits"`
	PaymentMode      string `json:"payment_mode"`
	PaymentReference string `json:"payment_reference"`
	Remarks          string `json:"remarks"`
}

// CreateOfficer opens an officer account with its seed allocation.
func (h Handlers) CreateOfficer(c *gin.Context) {
	if !h.requireCredits(c) {
		return
	}
	var req createOfficerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	grant := h.DefaultInitialCredits
	if req.InitialCredits != nil {
		grant = *req.InitialCredits
	}

	o, seed, err := h.Credits.OpenAccount(c.Request.Context(), credits.Officer{
		Name:        req.Name,
		Mobile:      req.Mobile,
		Email:       req.Email,
		Department:  strings.TrimSpace(req.Department),
		Rank:        strings.TrimSpace(req.Rank),
		BadgeNumber: strings.TrimSpace(req.BadgeNumber),
		Status:      credits.OfficerStatus(req.Status),
	}, grant, h.meta(c, req.PaymentMode, req.PaymentReference, req.Remarks))
	if err != nil {
		respondError(c, err)
		return
	}

	h.record(c, audit.EventCreateOfficer, audit.ResourceOfficer, o.ID, "Officer created", map[string]any{
		"name":            o.Name,
		"mobile":          o.Mobile,
		"initial_credits": grant,
	})

	body := gin.H{"officer": o}
	if seed != nil {
		body["transaction"] = seed
	}
	c.JSON(http.StatusCreated, body)
}

type officersQuery struct {
	Search string `form:"search"`
	Status string `form:"status" binding:"omitempty,oneof=Active Suspended Inactive"`
	Page   int    `form:"page" binding:"omitempty,min=1"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

func (h Handlers) ListOfficers(c *gin.Context) {
	if !h.requireCredits(c) {
		return
	}
	var q officersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	page, err := h.Credits.ListOfficers(c.Request.Context(), credits.OfficerQuery{
		Search: strings.TrimSpace(q.Search),
		Status: credits.OfficerStatus(q.Status),
		Page:   q.Page,
		Limit:  q.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h Handlers) GetOfficer(c *gin.Context) {
	if !h.requireCredits(c) {
		return
	}
	o, err := h.Credits.Balance(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"officer": o})
}

type updateOfficerRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=2"`
	Mobile      *string `json:"mobile"`
	Email       *string `json:"email" binding:"omitempty,email"`
	Department  *string `json:"department"`
	Rank        *string `json:"rank"`
	BadgeNumber *string `json:"badge_number"`
}

// UpdateOfficer changes an officer's profile. Balances and status have their own routes.
func (h Handlers) UpdateOfficer(c *gin.Context) {
	if !h.requireCredits(c) {
		return
	}
	var req updateOfficerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	before, after, err := h.Credits.UpdateProfile(c.Request.Context(), c.Param("id"), credits.ProfileUpdate{
		Name:        req.Name,
		Mobile:      req.Mobile,
		Email:       req.Email,
		Department:  req.Department,
		Rank:        req.Rank,
		BadgeNumber: req.BadgeNumber,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.record(c, audit.EventUpdateOfficer, audit.ResourceOfficer, after.ID, "Officer updated", map[string]any{
		"old_values": profileOf(before),
		"new_values": profileOf(after),
	})
	c.JSON(http.StatusOK, gin.H{"officer": after})
}

func profileOf(o credits.Officer) map[string]string {
	return map[string]string{
		"name":         o.Name,
		"mobile":       o.Mobile,
		"email":        o.Email,
		"department":   o.Department,
		"rank":         o.Rank,
		"badge_number": o.BadgeNumber,
	}
}

// OfficerStats reports one officer's balance, ledger summary and lookup summary.
func (h Handlers) OfficerStats(c *gin.Context) {
	if !h.requireCredits(c) {
		return
	}
	var d dateRange
	if err := c.ShouldBindQuery(&d); err != nil {
		bindError(c, err)
		return
	}
	r, err := d.parse()
	if err != nil {
		abort(c, http.StatusBadRequest, CodeValidation, "date_from/date_to must be YYYY-MM-DD or RFC 3339")
		return
	}
	id := c.Param("id")
	st, err := h.Credits.OfficerStats(c.Request.Context(), id, r)
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{
		"officer_id":        st.OfficerID,
		"officer":           st.Name,
		"status":            st.Status,
		"credits_remaining": st.CreditsRemaining,
		"total_credits":     st.TotalCredits,
		"ledger":            st.Ledger,
	}
	if h.Lookups != nil {
		sum, err := h.Lookups.Summarize(c.Request.Context(), lookups.Query{OfficerID: id, From: r.From, To: r.To})
		if err != nil {
			respondError(c, err)
			return
		}
		body["queries"] = sum
	}
	c.JSON(http.StatusOK, gin.H{"stats": body})
}

type statusRequest struct {
	Status string `json:"status" binding:"required,oneof=Active Suspended Inactive"`
}

// UpdateOfficerStatus activates, suspends or archives an officer.
func (h Handlers) UpdateOfficerStatus(c *gin.Context) {
	if !h.requireCredits(c) {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	o, err := h.Credits.SetStatus(c.Request.Context(), c.Param("id"), credits.OfficerStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}

	h.record(c, audit.EventUpdateOfficerStatus, audit.ResourceOfficer, o.ID, "Officer status updated", map[string]any{
		"status": string(o.Status),
	})
	c.JSON(http.StatusOK, gin.H{"officer": o})
}

// DeleteOfficer removes an officer with no ledger history.
func (h Handlers) DeleteOfficer(c *gin.Context) {
	if !h.requireCredits(c) {
		return
	}
	id := c.Param("id")
	if err := h.Credits.CloseAccount(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	h.record(c, audit.EventDeleteOfficer, audit.ResourceOfficer, id, "Officer deleted", nil)
	c.JSON(http.StatusOK, gin.H{"message": "Officer deleted successfully"})
}
