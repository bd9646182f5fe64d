package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rosterly/rosterd/internal/auth"
	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/requestid"
	"github.com/rosterly/rosterd/internal/usecase"
)

const (
	errUnauthorized = "Unauthorized"

	actorKey  = "actor"
	claimsKey = "claims"
)

// Auth validates a Bearer access token, rejects revoked token IDs, and
// stores the actor and claims in the gin context.
func Auth(tm *auth.TokenManager, revoked *auth.RevocationSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		claims, err := tm.ParseAccess(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}
		if revoked.Revoked(claims.TokenID) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		c.Set(claimsKey, claims)
		c.Set(actorKey, usecase.Actor{ID: claims.EmployeeID, Role: claims.Role})
		c.Request = c.Request.WithContext(requestid.WithEmployee(c.Request.Context(), claims.EmployeeID))
		c.Next()
	}
}

// Actor returns the authenticated principal set by Auth. The zero Actor is
// returned on unauthenticated routes.
func Actor(c *gin.Context) usecase.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return usecase.Actor{}
	}
	return v.(usecase.Actor)
}

// Claims returns the verified token claims set by Auth.
func Claims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	return v.(*auth.Claims)
}

// RequireRole guards a route group to a role subset on top of Auth.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	allowed := make(map[domain.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if !allowed[Actor(c).Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		c.Next()
	}
}
