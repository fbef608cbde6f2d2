package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pickme-intel/internal/config"

	"github.com/gin-gonic/gin"
)

func newAuthRouter(t *testing.T, m *Manager) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", RequireAccessToken(m), func(c *gin.Context) {
		uid, err := UserID(c.Request.Context())
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, uid+"|"+c.GetString("role"))
	})
	return r
}

func TestRequireAccessToken(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Hour})
	r := newAuthRouter(t, m)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "TOKEN_MISSING") {
		t.Fatalf("expected TOKEN_MISSING, got %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "TOKEN_INVALID") {
		t.Fatalf("expected TOKEN_INVALID, got %d %s", w.Code, w.Body.String())
	}

	tok, _, err := m.Issue(time.Now(), Identity{UserID: "admin-1", Email: "a@b.in", Role: "moderator"})
	if err != nil {
		t.Fatal(err)
	}
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "admin-1|moderator" {
		t.Fatalf("unexpected response: %d %s", w.Code, w.Body.String())
	}
}
