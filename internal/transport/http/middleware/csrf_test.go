package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/rosterly/rosterd/internal/transport/http/middleware"
)

func newCSRFEngine() *gin.Engine {
	r := gin.New()
	r.GET("/csrf-token", middleware.IssueCSRFToken(false))
	r.Use(middleware.CSRF())
	r.GET("/read", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/write", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCSRF_SafeMethodPasses(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/read", nil)
	newCSRFEngine().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestCSRF_MutatingWithoutToken_Returns403(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	newCSRFEngine().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestCSRF_HeaderMismatch_Returns403(t *testing.T) {
	r := newCSRFEngine()
	_, cookie := fetchCSRF(t, r)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	req.AddCookie(cookie)
	req.Header.Set("X-CSRF-Token", "wrong-token")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestCSRF_DoubleSubmitPasses(t *testing.T) {
	r := newCSRFEngine()
	token, cookie := fetchCSRF(t, r)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	req.AddCookie(cookie)
	req.Header.Set("X-CSRF-Token", token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func fetchCSRF(t *testing.T, r *gin.Engine) (string, *http.Cookie) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/csrf-token", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("issuing token: status = %d", w.Code)
	}
	var body struct {
		Token string `json:"csrf_token"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == "csrf_token" {
			if c.Value != body.Token {
				t.Fatalf("cookie value does not match body token")
			}
			return body.Token, c
		}
	}
	t.Fatal("csrf cookie not set")
	return "", nil
}
