package repository

import (
	"context"
	"time"
)

// TokenRepository persists refresh-token hashes for rotation. The raw token
// is never stored; callers hash before storing or claiming.
type TokenRepository interface {
	StoreRefresh(ctx context.Context, employeeID, tokenHash string, expiresAt time.Time) error
	// ClaimRefresh atomically marks the token used and returns its owner.
	// A token that is missing, expired, revoked or already used fails.
	ClaimRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeAllFor(ctx context.Context, employeeID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
