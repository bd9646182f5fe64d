package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/rosterly/rosterd/internal/domain"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "Str0ng!pass", false},
		{"too short", "S0r!t", true},
		{"no uppercase", "weak1pass!", true},
		{"no lowercase", "WEAK1PASS!", true},
		{"no digit", "Weakpass!!", true},
		{"no special", "Weakpass11", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
			if err != nil && domain.KindOf(err) != domain.KindValidation {
				t.Errorf("kind = %v, want validation", domain.KindOf(err))
			}
		})
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Str0ng!pass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !CheckPassword(hash, "Str0ng!pass") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "Wr0ng!pass") {
		t.Error("wrong password accepted")
	}
}

func TestCheckReuse(t *testing.T) {
	old, _ := HashPassword("Old1!pass")
	other, _ := HashPassword("Other2@pass")

	if err := CheckReuse("Old1!pass", []string{other, old}); err == nil {
		t.Error("reused password accepted")
	}
	if err := CheckReuse("Fresh3#pass", []string{other, old}); err != nil {
		t.Errorf("fresh password rejected: %v", err)
	}
}

func TestGenerateResetPassword(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		pw, err := GenerateResetPassword()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(pw) < 12 {
			t.Errorf("length = %d, want >= 12", len(pw))
		}
		if err := ValidatePassword(pw); err != nil {
			t.Errorf("generated password fails policy: %v", err)
		}
		if seen[pw] {
			t.Error("duplicate generated password")
		}
		seen[pw] = true

		var special bool
		for _, r := range pw {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				special = true
			}
		}
		if !special {
			t.Errorf("password %q has no special character", pw)
		}
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", 15*time.Minute, 30*24*time.Hour)
	emp := &domain.Employee{ID: "emp-1", Role: domain.RoleManager}

	signed, issued, err := m.IssueAccess(emp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if issued.TokenID == "" {
		t.Error("issued claims missing token id")
	}

	claims, err := m.ParseAccess(signed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.EmployeeID != "emp-1" {
		t.Errorf("employee id = %q, want %q", claims.EmployeeID, "emp-1")
	}
	if claims.Role != domain.RoleManager {
		t.Errorf("role = %q, want manager", claims.Role)
	}
	if claims.TokenID != issued.TokenID {
		t.Errorf("token id = %q, want %q", claims.TokenID, issued.TokenID)
	}
}

func TestParseAccessRejectsBadTokens(t *testing.T) {
	m := NewTokenManager("test-secret", 15*time.Minute, 30*24*time.Hour)
	other := NewTokenManager("other-secret", 15*time.Minute, 30*24*time.Hour)
	expired := NewTokenManager("test-secret", -time.Minute, 30*24*time.Hour)

	emp := &domain.Employee{ID: "emp-1", Role: domain.RoleEmployee}

	wrongKey, _, _ := other.IssueAccess(emp)
	stale, _, _ := expired.IssueAccess(emp)

	for name, raw := range map[string]string{
		"garbage":   "not.a.jwt",
		"wrong key": wrongKey,
		"expired":   stale,
		"empty":     "",
	} {
		if _, err := m.ParseAccess(raw); !errors.Is(err, domain.ErrTokenInvalid) {
			t.Errorf("%s: error = %v, want ErrTokenInvalid", name, err)
		}
	}
}

func TestIssueRefresh(t *testing.T) {
	m := NewTokenManager("test-secret", 15*time.Minute, 30*24*time.Hour)

	raw, hash, expiresAt, err := m.IssueRefresh()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw == "" || strings.Contains(raw, "=") {
		t.Errorf("raw token %q should be non-empty unpadded base64", raw)
	}
	if HashRefresh(raw) != hash {
		t.Error("hash does not match HashRefresh(raw)")
	}
	if until := time.Until(expiresAt); until < 29*24*time.Hour {
		t.Errorf("expiry %v too soon", until)
	}
}

func TestRevocationSet(t *testing.T) {
	s := NewRevocationSet()
	defer s.Close()

	s.Revoke("tok-1", time.Now().Add(time.Minute))
	if !s.Revoked("tok-1") {
		t.Error("revoked token reported as valid")
	}
	if s.Revoked("tok-2") {
		t.Error("unknown token reported as revoked")
	}

	s.Revoke("tok-3", time.Now().Add(-time.Minute))
	if s.Revoked("tok-3") {
		t.Error("already-expired token should not count as revoked")
	}
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		role domain.Role
		perm Permission
		want bool
	}{
		{domain.RoleAdmin, PermEmployeeDelete, true},
		{domain.RoleAdmin, PermRoleChange, true},
		{domain.RoleManager, PermEmployeeDelete, false},
		{domain.RoleManager, PermPasswordReset, true},
		{domain.RoleManager, PermRoleChange, false},
		{domain.RoleScheduler, PermAssignmentWrite, true},
		{domain.RoleScheduler, PermScheduleWrite, false},
		{domain.RoleScheduler, PermSolverRun, true},
		{domain.RoleEmployee, PermAssignmentWrite, false},
		{domain.RoleEmployee, PermSolverRun, false},
		{domain.RoleEmployee, PermScheduleRead, true},
	}
	for _, tt := range tests {
		if got := Allowed(tt.role, tt.perm); got != tt.want {
			t.Errorf("Allowed(%s, %s) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(LimiterClass{PerMinute: 5, Burst: 5})
	defer l.Close()

	for i := 0; i < 5; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d within cap was denied", i+1)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Error("request over cap was allowed")
	}
	if !l.Allow("5.6.7.8") {
		t.Error("other principal should have its own bucket")
	}
}
