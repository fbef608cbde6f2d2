package credits

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeBalanceService struct {
	officer Officer
	err     error
}

func (f fakeBalanceService) Balance(ctx context.Context, officerID string) (Officer, error) {
	return f.officer, f.err
}

func fixedCost(n int64) CostFunc {
	return func(*gin.Context) (int64, error) { return n, nil }
}

func serveGuarded(t *testing.T, svc BalanceService, cost CostFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/q/:officer_id", RequireSufficientCredits(svc, cost), func(c *gin.Context) {
		if _, ok := c.Get(ContextKeyOfficer); !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/q/off-1", nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRequireSufficientCredits_BlocksWhenInsufficient(t *testing.T) {
	svc := fakeBalanceService{officer: Officer{ID: "off-1", Status: OfficerStatusActive, CreditsRemaining: 1}}
	w := serveGuarded(t, svc, fixedCost(2))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRequireSufficientCredits_AllowsWhenCovered(t *testing.T) {
	svc := fakeBalanceService{officer: Officer{ID: "off-1", Status: OfficerStatusActive, CreditsRemaining: 2}}
	w := serveGuarded(t, svc, fixedCost(2))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireSufficientCredits_FreeQueryNeedsNoBalance(t *testing.T) {
	svc := fakeBalanceService{officer: Officer{ID: "off-1", Status: OfficerStatusActive}}
	w := serveGuarded(t, svc, fixedCost(0))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireSufficientCredits_RejectsSuspendedOfficer(t *testing.T) {
	svc := fakeBalanceService{officer: Officer{ID: "off-1", Status: OfficerStatusSuspended, CreditsRemaining: 100}}
	w := serveGuarded(t, svc, fixedCost(1))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != CodeOfficerInactive {
		t.Fatalf("expected %s, got %v", CodeOfficerInactive, body["code"])
	}
}

func TestRequireSufficientCredits_MapsLookupErrors(t *testing.T) {
	w := serveGuarded(t, fakeBalanceService{err: ErrOfficerNotFound}, fixedCost(1))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	w = serveGuarded(t, fakeBalanceService{err: &StoreError{Op: "get officer", Err: errors.New("down")}}, fixedCost(1))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	w = serveGuarded(t, fakeBalanceService{}, func(*gin.Context) (int64, error) { return 0, errors.New("unknown query type") })
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
