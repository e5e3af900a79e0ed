package handlers

import (
	"net/http"

	"readearn/internal/domain"
	"readearn/internal/logger"
	"readearn/internal/reading"

	"github.com/gin-gonic/gin"
)

type GiftRequest struct {
	Amount  domain.Amount `json:"amount"`
	Message string        `json:"message"`
}

// readingSession finds the open session for :slug.
func (h *Handler) readingSession(c *gin.Context, a *account) (*reading.Session, bool) {
	s, ok := h.Registry.Find(a.sid, c.Param("slug"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no reading session for this article", "code": "no_session"})
		return nil, false
	}
	return s, true
}

// StartReading opens (or reuses) the session for the article and starts the
// countdown, cancelling the countdown of any other article the caller had
// open. A rewarded article answers 409 already_rewarded.
func (h *Handler) StartReading(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	art, err := a.articles.Get(ctx, c.Param("slug"))
	if err != nil {
		writeError(c, err)
		return
	}

	if n := h.Registry.CancelOthers(a.sid, art.ID); n > 0 {
		logger.WithContext(ctx).Debug("previous reading cancelled", "slug", art.Slug, "cancelled", n)
	}
	s := h.Registry.Open(a.sid, *art, a.deps())
	if err := s.Start(ctx); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s.View()})
}

func (h *Handler) ReadingState(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	s, ok := h.readingSession(c, a)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s.View()})
}

func (h *Handler) CollectReward(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	s, ok := h.readingSession(c, a)
	if !ok {
		return
	}

	points, err := s.Collect(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"points_collected": points,
		"session":          s.View(),
		"wallet":           a.cache.Display(),
	})
}

func (h *Handler) GiftPoints(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	var req GiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid gift: "+err.Error())
		return
	}
	if !req.Amount.Valid {
		badRequest(c, "amount is required")
		return
	}
	s, ok := h.readingSession(c, a)
	if !ok {
		return
	}

	res, err := s.Gift(c.Request.Context(), req.Amount.Decimal(), req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"gift":    res,
		"session": s.View(),
		"wallet":  a.cache.Display(),
	})
}

// CancelReading stops the countdown; the next start counts from the full
// reading time again.
func (h *Handler) CancelReading(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	s, ok := h.readingSession(c, a)
	if !ok {
		return
	}
	s.Cancel()
	c.JSON(http.StatusOK, gin.H{"session": s.View()})
}

// CloseReading is sent when the reader leaves the article view.
func (h *Handler) CloseReading(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	s, ok := h.readingSession(c, a)
	if !ok {
		return
	}
	h.Registry.Close(a.sid, s.Article().ID)
	c.Status(http.StatusNoContent)
}
