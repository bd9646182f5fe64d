// Package requestid tags each request with an ID that follows it through
// the logs and into error responses.
package requestid

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type idKey struct{}
type employeeKey struct{}

// New generates a compact random request ID.
func New() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "req_unknown"
	}
	return "req_" + hex.EncodeToString(buf)
}

// WithRequestID returns a copy of ctx with the request ID attached.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey{}, id)
}

// FromContext extracts the request ID from ctx. Returns "" if absent.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(idKey{}).(string)
	return id
}

// WithEmployee attaches the authenticated employee ID once the token has
// been verified.
func WithEmployee(ctx context.Context, employeeID string) context.Context {
	return context.WithValue(ctx, employeeKey{}, employeeID)
}

// EmployeeFromContext extracts the employee ID from ctx. Returns "" on
// unauthenticated requests.
func EmployeeFromContext(ctx context.Context) string {
	id, _ := ctx.Value(employeeKey{}).(string)
	return id
}
