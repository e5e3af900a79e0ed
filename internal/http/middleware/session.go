package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// SessionHeader carries the BFF session id issued at login.
	SessionHeader = "X-Session-ID"

	sessionKey = "sid"
)

// Session requires a BFF session id, from the X-Session-ID header or the
// sid query parameter, and stores it on the gin context.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := requestSessionID(c)
		if sid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":    "session required",
				"redirect": "/login",
			})
			return
		}
		c.Set(sessionKey, sid)
		c.Next()
	}
}

// SessionID returns the id stored by Session, or "".
func SessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}

func requestSessionID(c *gin.Context) string {
	if sid := c.GetHeader(SessionHeader); sid != "" {
		return sid
	}
	return c.Query(sessionKey)
}
