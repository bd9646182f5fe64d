package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rosterly/rosterd/internal/auth"
	"github.com/rosterly/rosterd/internal/cache"
	"github.com/rosterly/rosterd/internal/transport/http/middleware"
)

type CacheHandler struct {
	caches *cache.Caches
	errs   Errors
}

func NewCacheHandler(caches *cache.Caches, errs Errors) *CacheHandler {
	return &CacheHandler{caches: caches, errs: errs}
}

// Stats exposes per-cache hit rates for operators.
func (h *CacheHandler) Stats(c *gin.Context) {
	if !middleware.Actor(c).Can(auth.PermCacheStats) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"caches": h.caches.Stats(c.Request.Context())})
}
