package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Authorization"
	// Content-Disposition carries the export and QR filenames.
	corsExpose = "Content-Disposition"
)

type corsPolicy struct {
	any     bool
	origins map[string]bool
}

func newCORSPolicy(allowed string) corsPolicy {
	p := corsPolicy{origins: map[string]bool{}}
	for _, o := range strings.Split(allowed, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			p.any = true
		default:
			p.origins[o] = true
		}
	}
	if len(p.origins) == 0 {
		p.any = true
	}
	return p
}

func (p corsPolicy) allow(origin string) string {
	if p.any {
		return "*"
	}
	if origin != "" && p.origins[origin] {
		return origin
	}
	return ""
}

// CORS sets cross-origin headers for the admin UI and the public portal.
// allowedOrigins is "*" or a comma-separated list such as "http://localhost:3000,http://localhost:5173".
func CORS(allowedOrigins string) gin.HandlerFunc {
	policy := newCORSPolicy(allowedOrigins)
	return func(c *gin.Context) {
		if allow := policy.allow(c.GetHeader("Origin")); allow != "" {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Expose-Headers", corsExpose)
			h.Set("Access-Control-Max-Age", "86400")
			if allow != "*" {
				h.Add("Vary", "Origin")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
