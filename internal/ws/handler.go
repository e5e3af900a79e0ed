package ws

import (
	"net/http"

	"readearn/internal/logger"
	"readearn/internal/reading"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Sessions finds the reading session a socket subscribes to.
// reading.Registry implements it.
type Sessions interface {
	Find(owner, slug string) (*reading.Session, bool)
}

// HandleWS upgrades /ws?sid=...&slug=... and streams that session's events.
// allowedOrigin empty accepts any origin.
func HandleWS(hub *Hub, sessions Sessions, allowedOrigin string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	return func(c *gin.Context) {
		sid := c.Query("sid")
		if sid == "" {
			sid = c.GetHeader("X-Session-ID")
		}
		if sid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session required"})
			return
		}

		slug := c.Query("slug")
		if slug == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "slug required"})
			return
		}

		session, ok := sessions.Find(sid, slug)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no reading session for this article"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade error", "error", err)
			return
		}

		client := NewClient(sid, conn, hub, session)
		go client.Run()
	}
}
