package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rosterly/rosterd/internal/domain"
)

// Claims is the verified payload of an access token.
type Claims struct {
	EmployeeID string
	Role       domain.Role
	TokenID    string
	ExpiresAt  time.Time
}

// TokenManager signs and verifies access tokens and mints opaque refresh
// tokens. Refresh tokens are random strings; only their SHA-256 hash is ever
// persisted.
type TokenManager struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{key: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (m *TokenManager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

// IssueAccess returns a signed access token with a fresh jti, used later for
// revocation on logout.
func (m *TokenManager) IssueAccess(employee *domain.Employee) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		EmployeeID: employee.ID,
		Role:       employee.Role,
		TokenID:    uuid.NewString(),
		ExpiresAt:  now.Add(m.accessTTL),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  claims.EmployeeID,
		"role": string(claims.Role),
		"jti":  claims.TokenID,
		"iat":  now.Unix(),
		"exp":  claims.ExpiresAt.Unix(),
	})
	signed, err := t.SignedString(m.key)
	if err != nil {
		return "", nil, fmt.Errorf("sign access token: %w", err)
	}
	return signed, claims, nil
}

// ParseAccess verifies the signature and expiry and returns the claims.
func (m *TokenManager) ParseAccess(raw string) (*Claims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.key, nil
	})
	if err != nil || !token.Valid {
		return nil, domain.ErrTokenInvalid
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	sub, _ := mc["sub"].(string)
	role, _ := mc["role"].(string)
	jti, _ := mc["jti"].(string)
	exp, _ := mc["exp"].(float64)
	if sub == "" || jti == "" || !domain.Role(role).Valid() {
		return nil, domain.ErrTokenInvalid
	}
	return &Claims{
		EmployeeID: sub,
		Role:       domain.Role(role),
		TokenID:    jti,
		ExpiresAt:  time.Unix(int64(exp), 0),
	}, nil
}

// IssueRefresh returns the raw refresh token and the hash to persist.
func (m *TokenManager) IssueRefresh() (raw, hash string, expiresAt time.Time, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", time.Time{}, fmt.Errorf("generate refresh token: %w", err)
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, HashRefresh(raw), time.Now().Add(m.refreshTTL), nil
}

// HashRefresh maps a raw refresh token to its storage form.
func HashRefresh(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
