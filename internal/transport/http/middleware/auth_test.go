package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rosterly/rosterd/internal/auth"
	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/transport/http/middleware"
)

const testSecret = "middleware-test-secret-32-chars!!"

func init() {
	gin.SetMode(gin.TestMode)
}

// newEngine builds a minimal engine with Auth protecting GET /protected.
// The handler echoes the actor ID so we can assert it was set.
func newEngine(t *testing.T) (*gin.Engine, *auth.TokenManager, *auth.RevocationSet) {
	t.Helper()
	tm := auth.NewTokenManager(testSecret, 15*time.Minute, time.Hour)
	revoked := auth.NewRevocationSet()
	t.Cleanup(revoked.Close)

	r := gin.New()
	r.GET("/protected", middleware.Auth(tm, revoked), func(c *gin.Context) {
		c.String(http.StatusOK, "%s", middleware.Actor(c).ID)
	})
	return r, tm, revoked
}

func issueToken(t *testing.T, tm *auth.TokenManager) (string, *auth.Claims) {
	t.Helper()
	token, claims, err := tm.IssueAccess(&domain.Employee{ID: "emp-1", Role: domain.RoleManager})
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	return token, claims
}

func TestAuth_MissingHeader_Returns401(t *testing.T) {
	r, _, _ := newEngine(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuth_NonBearerScheme_Returns401(t *testing.T) {
	r, _, _ := newEngine(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuth_InvalidToken_Returns401(t *testing.T) {
	r, _, _ := newEngine(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuth_ValidToken_SetsActor(t *testing.T) {
	r, tm, _ := newEngine(t)
	token, _ := issueToken(t, tm)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "emp-1" {
		t.Errorf("actor ID = %q, want %q", got, "emp-1")
	}
}

func TestAuth_RevokedToken_Returns401(t *testing.T) {
	r, tm, revoked := newEngine(t)
	token, claims := issueToken(t, tm)
	revoked.Revoke(claims.TokenID, claims.ExpiresAt)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireRole_BlocksOtherRoles(t *testing.T) {
	tm := auth.NewTokenManager(testSecret, 15*time.Minute, time.Hour)
	revoked := auth.NewRevocationSet()
	t.Cleanup(revoked.Close)

	r := gin.New()
	r.GET("/admin-only", middleware.Auth(tm, revoked), middleware.RequireRole(domain.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	token, _, err := tm.IssueAccess(&domain.Employee{ID: "emp-2", Role: domain.RoleEmployee})
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin-only", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}
