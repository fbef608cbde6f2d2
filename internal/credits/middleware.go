package credits

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKeyOfficer is the gin context key holding the Officer loaded by RequireSufficientCredits.
const ContextKeyOfficer = "credits.officer"

// BalanceService is the minimal ledger interface needed by middleware.
type BalanceService interface {
	Balance(ctx context.Context, officerID string) (Officer, error)
}

// CostFunc resolves what the request will charge. A zero cost skips the balance check.
type CostFunc func(c *gin.Context) (int64, error)

// RequireSufficientCredits blocks the request before any work is done when the
// officer named by the :officer_id path parameter cannot pay for it.
//
// It is an early, advisory check: Deduct re-validates under the officer lock,
// so a request that passes here can still fail with ErrInsufficientCredits.
func RequireSufficientCredits(svc BalanceService, cost CostFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		officerID := strings.TrimSpace(c.Param("officer_id"))
		if officerID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "officer_id required", "code": CodeValidation})
			return
		}

		amount, err := cost(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": CodeValidation})
			return
		}
		if amount < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "cost invalid", "code": CodeInvalidAmount})
			return
		}

		o, err := svc.Balance(c.Request.Context(), officerID)
		if err != nil {
			if errors.Is(err, ErrOfficerNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Officer not found", "code": CodeOfficerNotFound})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "balance lookup failed", "code": CodeStoreFailure})
			return
		}
		if o.Status != OfficerStatusActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Officer is " + string(o.Status), "code": CodeOfficerInactive})
			return
		}
		if amount > 0 && o.CreditsRemaining < amount {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":             "Insufficient credits",
				"code":              CodeInsufficientCredits,
				"credits_remaining": o.CreditsRemaining,
				"credits_required":  amount,
			})
			return
		}

		c.Set(ContextKeyOfficer, o)
		c.Next()
	}
}
