package handler_test

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/transport/http/handler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func respond(t *testing.T, errs handler.Errors, err error) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := gin.New()
	r.GET("/", func(c *gin.Context) { errs.Respond(c, err) })
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestRespond_StatusMapping(t *testing.T) {
	errs := handler.Errors{Logger: slog.New(slog.DiscardHandler)}

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.Validation("bad input", nil), http.StatusUnprocessableEntity},
		{"conflict code", domain.E(domain.KindConflict, domain.CodeOverlapConflict, "overlaps"), http.StatusConflict},
		{"forbidden", domain.E(domain.KindForbidden, domain.CodeAuthorizationDenied, "no"), http.StatusForbidden},
		{"not found sentinel", domain.ErrShiftNotFound, http.StatusNotFound},
		{"locked sentinel", domain.ErrAccountLocked, http.StatusLocked},
		{"bad credentials", domain.ErrBadCredentials, http.StatusUnauthorized},
		{"version mismatch", domain.ErrVersionMismatch, http.StatusConflict},
		{"rate limited", domain.E(domain.KindRateLimited, "", "slow down"), http.StatusTooManyRequests},
		{"solver timeout", domain.E(domain.KindSolverTimeout, "", "no solution in budget"), http.StatusGatewayTimeout},
		{"dependency", domain.E(domain.KindDependency, "", "redis down"), http.StatusServiceUnavailable},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := respond(t, errs, tc.err)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestRespond_DomainErrorBody(t *testing.T) {
	errs := handler.Errors{Logger: slog.New(slog.DiscardHandler)}
	w := respond(t, errs, domain.E(domain.KindConflict, domain.CodeDuplicateAssignment, "employee already holds this shift"))

	var body struct {
		Error struct {
			Kind      string `json:"kind"`
			Code      string `json:"code"`
			Message   string `json:"message"`
			Retryable bool   `json:"retryable"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error.Kind != "conflict" {
		t.Errorf("kind = %q, want conflict", body.Error.Kind)
	}
	if body.Error.Code != domain.CodeDuplicateAssignment {
		t.Errorf("code = %q, want %q", body.Error.Code, domain.CodeDuplicateAssignment)
	}
	if body.Error.Retryable {
		t.Error("conflict should not be retryable")
	}
}

func TestRespond_RetryableFlag(t *testing.T) {
	errs := handler.Errors{Logger: slog.New(slog.DiscardHandler)}
	w := respond(t, errs, domain.E(domain.KindRateLimited, "", "rate limit exceeded"))

	var body struct {
		Error struct {
			Retryable bool `json:"retryable"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if !body.Error.Retryable {
		t.Error("rate_limited should be retryable")
	}
}

func TestRespond_ProductionSanitizesInternal(t *testing.T) {
	errs := handler.Errors{Production: true, Logger: slog.New(slog.DiscardHandler)}
	w := respond(t, errs, errors.New("pq: connection refused at 10.0.0.5"))

	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error.Message != "Internal server error" {
		t.Errorf("message = %q, internal detail must not leak", body.Error.Message)
	}
}
