package httpapi

import (
	"errors"
	"net/http"

	"pickme-intel/internal/auth"
	"pickme-intel/internal/credits"
	"pickme-intel/internal/lookups"
	"pickme-intel/internal/pricing"
	"pickme-intel/internal/rbac"
	"pickme-intel/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeValidation          = credits.CodeValidation
	CodeInvalidAmount       = credits.CodeInvalidAmount
	CodeInsufficientCredits = credits.CodeInsufficientCredits
	CodeOfficerNotFound     = credits.CodeOfficerNotFound
	CodeOfficerInactive     = credits.CodeOfficerInactive
	CodeOfficerHasLedger    = "OFFICER_HAS_LEDGER"
	CodeDuplicateMobile     = "DUPLICATE_MOBILE"
	CodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	CodeConsistency         = "CONSISTENCY_VIOLATION"
	CodeStoreFailure        = credits.CodeStoreFailure
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeTokenMissing        = auth.CodeTokenMissing
	CodeTokenInvalid        = auth.CodeTokenInvalid
	CodeForbidden           = rbac.CodeInsufficientPermissions
	CodeRateLimited         = "RATE_LIMITED"
	CodeNotConfigured       = "NOT_CONFIGURED"
	CodeQueryNotFound       = "QUERY_NOT_FOUND"
)

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}

// respondError maps service errors onto the public error contract.
// Store failures are logged and replaced with a generic message.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, credits.ErrInvalidAmount):
		abort(c, http.StatusBadRequest, CodeInvalidAmount, err.Error())
	case errors.Is(err, credits.ErrInsufficientCredits):
		abort(c, http.StatusBadRequest, CodeInsufficientCredits, "Insufficient credits")
	case errors.Is(err, credits.ErrValidation),
		errors.Is(err, pricing.ErrUnknownQueryType),
		errors.Is(err, pricing.ErrInvalidPricingReq),
		errors.Is(err, lookups.ErrInvalidQuery):
		abort(c, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, credits.ErrOfficerNotFound):
		abort(c, http.StatusNotFound, CodeOfficerNotFound, "Officer not found")
	case errors.Is(err, credits.ErrOfficerHasLedger):
		abort(c, http.StatusConflict, CodeOfficerHasLedger, "Officer has credit history; set status to Inactive instead")
	case errors.Is(err, credits.ErrDuplicateMobile):
		abort(c, http.StatusConflict, CodeDuplicateMobile, "Officer with this mobile number already exists")
	case errors.Is(err, credits.ErrIdempotencyConflict):
		abort(c, http.StatusConflict, CodeIdempotencyConflict, err.Error())
	case errors.Is(err, lookups.ErrNotFound):
		abort(c, http.StatusNotFound, CodeQueryNotFound, "Query not found")
	case errors.Is(err, credits.ErrConsistencyViolation):
		abort(c, http.StatusConflict, CodeConsistency, err.Error())
	default:
		logger.FromGin(c).Error("request failed", "err", err)
		abort(c, http.StatusInternalServerError, CodeStoreFailure, "Internal server error")
	}
}

func bindError(c *gin.Context, err error) {
	abort(c, http.StatusBadRequest, CodeValidation, err.Error())
}
