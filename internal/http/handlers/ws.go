package handlers

import (
	"readearn/internal/ws"

	"github.com/gin-gonic/gin"
)

// WS streams reading-session events of the caller's session.
func (h *Handler) WS(hub *ws.Hub) gin.HandlerFunc {
	return ws.HandleWS(hub, h.Registry, h.cfg.AllowedOrigin)
}
