package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pickme-intel/internal/credits"
	"pickme-intel/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLedger_ObserveOperation(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOperation("deduct", nil, time.Millisecond)
	m.ObserveOperation("deduct", credits.ErrInsufficientCredits, time.Millisecond)
	m.ObserveOperation("grant", &credits.StoreError{Op: "commit", Err: errors.New("down")}, time.Millisecond)

	if got := testutil.ToFloat64(m.operations.WithLabelValues("deduct", "ok")); got != 1 {
		t.Fatalf("expected 1 ok deduct, got %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("deduct", "insufficient")); got != 1 {
		t.Fatalf("expected 1 insufficient deduct, got %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("grant", "store_failure")); got != 1 {
		t.Fatalf("expected 1 store failure, got %v", got)
	}
	if n := testutil.CollectAndCount(m.latency); n != 2 {
		t.Fatalf("expected 2 latency series, got %d", n)
	}
}

func TestLedger_ObserveCreditsAndDrift(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCredits(credits.ActionTopUp, 20)
	m.ObserveCredits(credits.ActionDeduction, -7)
	m.ObserveCredits(credits.ActionAdjustment, 0)
	m.ObserveDrift("o-1", 5)
	m.ObserveDrift("o-2", 0)

	if got := testutil.ToFloat64(m.credits.WithLabelValues("in")); got != 20 {
		t.Fatalf("expected 20 in, got %v", got)
	}
	if got := testutil.ToFloat64(m.credits.WithLabelValues("out")); got != 7 {
		t.Fatalf("expected 7 out, got %v", got)
	}
	if got := testutil.ToFloat64(m.driftDetected); got != 1 {
		t.Fatalf("expected drift gauge 1, got %v", got)
	}
}

func TestLedger_WiredIntoService(t *testing.T) {
	m := New(prometheus.NewRegistry())
	store := credits.NewMemoryStore()
	svc := credits.NewService(store, credits.WithLogger(logger.Discard()), credits.WithObserver(m))
	ctx := context.Background()

	o, _, err := svc.OpenAccount(ctx, credits.Officer{Name: "Inspector Rao", Mobile: "9876543210"}, 50, credits.Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Deduct(ctx, o.ID, 10, credits.Metadata{}); err != nil {
		t.Fatal(err)
	}
	store.Corrupt(o.ID, 99)
	if _, err := svc.Reconcile(ctx, o.ID); !errors.Is(err, credits.ErrConsistencyViolation) {
		t.Fatalf("expected drift, got %v", err)
	}

	if got := testutil.ToFloat64(m.credits.WithLabelValues("out")); got != 10 {
		t.Fatalf("expected 10 out, got %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("reconcile", "ok")); got != 1 {
		t.Fatalf("expected reconcile counted as ok, got %v", got)
	}
	if got := testutil.ToFloat64(m.driftDetected); got != 1 {
		t.Fatalf("expected drift gauge 1, got %v", got)
	}
}

func TestLedger_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/officers/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, p := range []string{"/api/officers/a", "/api/officers/b", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/officers/:id", "200")); got != 2 {
		t.Fatalf("expected 2 route hits, got %v", got)
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("expected 1 unmatched hit, got %v", got)
	}
}
