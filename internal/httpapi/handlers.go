package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"pickme-intel/internal/audit"
	"pickme-intel/internal/auth"
	"pickme-intel/internal/credits"
	"pickme-intel/internal/lookups"
	"pickme-intel/internal/pricing"
	"pickme-intel/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Credits *credits.Service
	Pricing *pricing.Service
	Audit   *audit.Service
	Lookups *lookups.Service
	Auth    *auth.Manager
	Admins  *auth.Directory

	Env string
	// DefaultInitialCredits is granted to new officers when the request omits initial_credits.
	DefaultInitialCredits int64
	// Ping reports store health; nil means always healthy.
	Ping func(ctx context.Context) error
	// Now defaults to time.Now.
	Now func() time.Time
}

const idempotencyHeader = "Idempotency-Key"

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- Health ---

func (h Handlers) Health(c *gin.Context) {
	status, code := "OK", http.StatusOK
	if h.Ping != nil {
		if err := h.Ping(c.Request.Context()); err != nil {
			logger.FromGin(c).Warn("health check failed", "err", err)
			status, code = "DEGRADED", http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{
		"status":      status,
		"timestamp":   h.now().UTC().Format(time.RFC3339),
		"environment": h.Env,
	})
}

// --- Shared helpers ---

func (h Handlers) actor(c *gin.Context) audit.Actor {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	return audit.Actor{UserID: uid, Role: role, IP: c.ClientIP()}
}

// record appends an audit event. Failures are logged and never fail the request.
func (h Handlers) record(c *gin.Context, action audit.EventType, resourceType, resourceID, message string, metadata map[string]any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.LogAdminAction(c.Request.Context(), h.actor(c), action, resourceType, resourceID, message, metadata); err != nil {
		logger.FromGin(c).Warn("audit append failed", "action", string(action), "resource_id", resourceID, "err", err)
	}
}

func (h Handlers) meta(c *gin.Context, paymentMode, paymentRef, remarks string) credits.Metadata {
	uid, _ := auth.UserID(c.Request.Context())
	return credits.Metadata{
		PaymentMode:      strings.TrimSpace(paymentMode),
		PaymentReference: strings.TrimSpace(paymentRef),
		Remarks:          strings.TrimSpace(remarks),
		ProcessedBy:      uid,
		IdempotencyKey:   strings.TrimSpace(c.GetHeader(idempotencyHeader)),
	}
}

func (h Handlers) requireCredits(c *gin.Context) bool {
	if h.Credits == nil {
		abort(c, http.StatusInternalServerError, CodeNotConfigured, "credit ledger not configured")
		return false
	}
	return true
}

// parseDate accepts RFC 3339 or YYYY-MM-DD. A date-only upper bound covers the whole day.
func parseDate(s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

type dateRange struct {
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
}

func (d dateRange) parse() (credits.Range, error) {
	from, err := parseDate(d.DateFrom, false)
	if err != nil {
		return credits.Range{}, err
	}
	to, err := parseDate(d.DateTo, true)
	if err != nil {
		return credits.Range{}, err
	}
	return credits.Range{From: from, To: to}, nil
}
