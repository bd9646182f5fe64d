package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const DefaultBodyLimit = 1 << 20 // 1 MB

// BodyLimit caps the request body. Oversized bodies fail during binding
// with a 400 rather than exhausting memory.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultBodyLimit
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "request body too large",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
