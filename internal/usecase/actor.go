// Package usecase holds the application services between the HTTP handlers
// and the repositories. Authorization beyond the coarse role check happens
// here, where the target entity is known.
package usecase

import (
	"github.com/rosterly/rosterd/internal/auth"
	"github.com/rosterly/rosterd/internal/domain"
)

// Actor is the authenticated principal a request runs as.
type Actor struct {
	ID   string
	Role domain.Role
}

func (a Actor) Can(perm auth.Permission) bool {
	return auth.Allowed(a.Role, perm)
}

func (a Actor) Is(employeeID string) bool {
	return a.ID == employeeID
}

func forbidden(message string) *domain.Error {
	return domain.E(domain.KindForbidden, domain.CodeAuthorizationDenied, message)
}
