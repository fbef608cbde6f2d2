package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pickme-intel/internal/auth"
	"pickme-intel/internal/config"
	"pickme-intel/internal/credits"
	"pickme-intel/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func testConfig(t *testing.T, driver string) config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{
		App:     config.AppConfig{Env: "local", Port: 8080},
		Store:   config.StoreConfig{Driver: driver},
		Auth:    config.AuthConfig{JWTSecret: "test-secret"},
		Admin:   config.AdminConfig{Email: "admin@pickme.in", PasswordHash: string(hash)},
		Billing: config.BillingConfig{CreditPriceMinor: 2, DefaultInitialCredits: 50},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

type server struct {
	app    *app
	auth   *auth.Manager
	router *gin.Engine
}

func newTestServer(t *testing.T, driver string) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t, driver)
	a, err := newApp(context.Background(), cfg, logger.Discard(), appOptions{})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(a.Close)
	m, err := auth.NewManager(cfg.Auth)
	if err != nil {
		t.Fatal(err)
	}
	return &server{app: a, auth: m, router: newRouter(a, handlersFor(a, m))}
}

func (s *server) token(t *testing.T, role string) string {
	t.Helper()
	tok, _, err := s.auth.Issue(time.Now(), auth.Identity{UserID: role + "-1", Email: role + "@pickme.in", Role: role})
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (s *server) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestRoutes_AuthAndRoles(t *testing.T) {
	s := newTestServer(t, config.DriverMemory)
	admin, mod := s.token(t, "admin"), s.token(t, "moderator")

	if w := s.do(t, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/credits/stats", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/credits/stats", mod, nil); w.Code != http.StatusOK {
		t.Fatalf("moderator should read stats, got %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/api/officers", mod, map[string]any{"name": "Inspector Rao", "mobile": "9876543210"}); w.Code != http.StatusForbidden {
		t.Fatalf("moderator must not create officers, got %d", w.Code)
	}

	w := s.do(t, http.MethodPost, "/api/officers", admin, map[string]any{"name": "Inspector Rao", "mobile": "9876543210"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		Officer credits.Officer `json:"officer"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	if w := s.do(t, http.MethodPost, "/api/credits/add", mod, map[string]any{"officer_id": created.Officer.ID, "action": "Top-up", "credits": 5}); w.Code != http.StatusForbidden {
		t.Fatalf("moderator must not add credits, got %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/api/queries/"+created.Officer.ID, mod, map[string]any{"type": "PRO", "input": "9876543210"}); w.Code != http.StatusOK {
		t.Fatalf("moderator lookup: %d %s", w.Code, w.Body.String())
	}

	bal, err := s.app.credits.Balance(context.Background(), created.Officer.ID)
	if err != nil || bal.CreditsRemaining != 48 {
		t.Fatalf("expected 48 after PRO lookup, got %+v %v", bal, err)
	}
}

func TestRoutes_OfficerProfileAndQueryHistory(t *testing.T) {
	s := newTestServer(t, config.DriverMemory)
	admin, mod := s.token(t, "admin"), s.token(t, "moderator")

	w := s.do(t, http.MethodPost, "/api/officers", admin, map[string]any{"name": "Inspector Rao", "mobile": "9876543210"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		Officer credits.Officer `json:"officer"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	id := created.Officer.ID

	if w := s.do(t, http.MethodPut, "/api/officers/"+id, mod, map[string]any{"rank": "SI"}); w.Code != http.StatusForbidden {
		t.Fatalf("moderator must not update officers, got %d", w.Code)
	}
	if w := s.do(t, http.MethodPut, "/api/officers/"+id, admin, map[string]any{"rank": "Inspector", "department": "Cyber Cell"}); w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}

	if w := s.do(t, http.MethodPost, "/api/queries/"+id, mod, map[string]any{"type": "RC", "input": "KA01AB1234"}); w.Code != http.StatusOK {
		t.Fatalf("lookup: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/api/queries?officer_id="+id, mod, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list queries: %d %s", w.Code, w.Body.String())
	}
	var list struct {
		Queries []struct {
			ID          string `json:"id"`
			Type        string `json:"type"`
			CreditsUsed int64  `json:"credits_used"`
		} `json:"queries"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Queries) != 1 || list.Queries[0].Type != "RC" || list.Queries[0].CreditsUsed != 1 {
		t.Fatalf("unexpected history: %s", w.Body.String())
	}

	if w := s.do(t, http.MethodGet, "/api/queries/"+list.Queries[0].ID, mod, nil); w.Code != http.StatusOK {
		t.Fatalf("get query: %d %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodGet, "/api/queries/stats/summary", mod, nil); w.Code != http.StatusOK {
		t.Fatalf("query stats: %d %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodGet, "/api/queries/catalog", mod, nil); w.Code != http.StatusOK {
		t.Fatalf("catalog: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/api/officers/"+id+"/stats", mod, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("officer stats: %d %s", w.Code, w.Body.String())
	}
	var stats struct {
		Stats struct {
			CreditsRemaining int64 `json:"credits_remaining"`
			Queries          struct {
				TotalQueries int `json:"total_queries"`
			} `json:"queries"`
		} `json:"stats"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.Stats.CreditsRemaining != 49 || stats.Stats.Queries.TotalQueries != 1 {
		t.Fatalf("unexpected officer stats: %s", w.Body.String())
	}
}

func TestRoutes_LoginThenUseToken(t *testing.T) {
	s := newTestServer(t, config.DriverMemory)

	w := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "admin@pickme.in", "password": "admin-pass"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)

	w = s.do(t, http.MethodGet, "/api/auth/me", body.Token, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"role":"admin"`) {
		t.Fatalf("me: %d %s", w.Code, w.Body.String())
	}
}

func TestRoutes_MetricsExposed(t *testing.T) {
	s := newTestServer(t, config.DriverMemory)
	admin := s.token(t, "admin")
	s.do(t, http.MethodPost, "/api/officers", admin, map[string]any{"name": "Inspector Rao", "mobile": "9876543210"})

	w := s.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
	for _, name := range []string{"credits_ledger_operations_total", "credits_ledger_credits_total", "credits_http_requests_total"} {
		if !strings.Contains(w.Body.String(), name) {
			t.Fatalf("metrics output missing %s", name)
		}
	}
}

func TestRoutes_SQLiteDriver(t *testing.T) {
	s := newTestServer(t, config.DriverSQLite)
	admin := s.token(t, "admin")

	w := s.do(t, http.MethodPost, "/api/officers", admin, map[string]any{"name": "Inspector Rao", "mobile": "9876543210", "initial_credits": 5})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("health with sqlite ping: %d", w.Code)
	}
}

func TestReconcileOfficers(t *testing.T) {
	s := newTestServer(t, config.DriverMemory)
	ctx := context.Background()
	svc := s.app.credits

	a, _, err := svc.OpenAccount(ctx, credits.Officer{Name: "Inspector Rao", Mobile: "9876543210"}, 50, credits.Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := svc.OpenAccount(ctx, credits.Officer{Name: "SI Mehta", Mobile: "9876543211"}, 10, credits.Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	s.app.store.(*credits.MemoryStore).Corrupt(b.ID, 3)

	ids, err := allOfficerIDs(ctx, svc)
	if err != nil || len(ids) != 2 {
		t.Fatalf("expected 2 officers, got %v %v", ids, err)
	}

	var out bytes.Buffer
	drifted, err := reconcileOfficers(ctx, svc, ids, &out)
	if err != nil {
		t.Fatal(err)
	}
	if drifted != 1 {
		t.Fatalf("expected 1 drifted officer, got %d", drifted)
	}
	if lines := strings.Count(out.String(), "\n"); lines != 2 {
		t.Fatalf("expected 2 report lines, got %d: %s", lines, out.String())
	}

	if _, err := reconcileOfficers(ctx, svc, []string{"missing"}, &out); !errors.Is(err, credits.ErrOfficerNotFound) {
		t.Fatalf("expected ErrOfficerNotFound, got %v", err)
	}
	_ = a
}

func TestReconcileCommandRequiresOneTarget(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "memory")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"reconcile", "--env-file", t.TempDir() + "/missing.env"})
	cmd.SetOut(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "--officer or --all") {
		t.Fatalf("expected flag error, got %v", err)
	}

	cmd = newRootCommand()
	cmd.SetArgs([]string{"reconcile", "--all", "--env-file", t.TempDir() + "/missing.env"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("reconcile --all on empty store: %v", err)
	}
}

func TestHashPasswordCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"hash-password", "s3cret"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	hash := strings.TrimSpace(out.String())
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")) != nil {
		t.Fatalf("printed hash does not verify: %q", hash)
	}
}
