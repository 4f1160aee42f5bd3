package http

import "github.com/gin-gonic/gin"

// securityHeadersMiddleware adds security headers suited to a JSON API.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		// reading positions and session state must never be served from a cache
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
