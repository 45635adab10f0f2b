package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// admin wraps a handler with the X-Admin-Key check. Deployments without an
// admin key configured get the admin surface disabled outright.
func (s *Server) admin(handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.adminAPIKey == "" {
			writeErrorCode(c, http.StatusForbidden, "ADMIN_DISABLED", "admin api key not configured")
			return
		}
		key := strings.TrimSpace(c.GetHeader("X-Admin-Key"))
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminAPIKey)) != 1 {
			writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
			return
		}
		handler(c)
	}
}
