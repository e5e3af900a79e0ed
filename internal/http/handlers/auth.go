package handlers

import (
	"errors"
	"net/http"

	"readearn/internal/api"
	"readearn/internal/auth"
	"readearn/internal/domain"
	"readearn/internal/http/middleware"
	"readearn/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuthRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login exchanges credentials with the platform and opens a BFF session.
// The tokens never leave the server; the browser only gets the session id.
func (h *Handler) Login(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}

	ctx := c.Request.Context()
	sid := uuid.NewString()
	client := h.newClient(sid)

	res, err := client.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		writeError(c, err)
		return
	}

	claims, err := auth.ParseClaims(res.Access)
	if err != nil {
		logger.WithContext(ctx).Warn("access token without readable claims", "error", err)
	}

	h.mu.Lock()
	h.accounts[sid] = h.newAccount(sid, claims.UserID, client)
	h.mu.Unlock()

	h.Audit.LogLogin(ctx, claims.UserID, c.ClientIP(), c.Request.UserAgent())

	resp := gin.H{
		"session_id": sid,
		"user_id":    claims.UserID,
	}
	if !claims.ExpiresAt.IsZero() {
		resp["expires_at"] = claims.ExpiresAt
	}
	c.JSON(http.StatusOK, resp)
}

// Logout forgets the session's tokens and closes its reading sessions.
func (h *Handler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	sid := middleware.SessionID(c)

	if err := h.Tokens.Delete(ctx, sid); err != nil {
		logger.WithContext(ctx).Error("delete tokens failed", "error", err)
	}
	userID := h.forget(sid)
	h.Audit.Log(ctx, userID, domain.AuditActionLogout, domain.AuditCategoryAuth, nil)

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
