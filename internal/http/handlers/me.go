package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return defaultActivityLimit
	}
	if n > maxActivityLimit {
		return maxActivityLimit
	}
	return n
}

// Me returns who is logged in on this session.
func (h *Handler) Me(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":    a.userID,
		"session_id": a.sid,
		"wallet":     a.cache.Display(),
	})
}

// MyActivity returns the caller's reading, wallet and publish journal.
func (h *Handler) MyActivity(c *gin.Context) {
	userID, ok := h.getUserID(c)
	if !ok {
		return
	}
	logs, err := h.Audit.UserLogs(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": logs})
}
