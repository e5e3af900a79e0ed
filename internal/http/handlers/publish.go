package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"readearn/internal/publish"

	"github.com/gin-gonic/gin"
)

// PublishBalance reports whether the publish action may be enabled.
func (h *Handler) PublishBalance(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, a.gate.CheckBalance(c.Request.Context()))
}

// RequestPublish runs the balance gate. A top-up answer is a 409 with the
// wallet path to redirect to; the request is not retried.
func (h *Handler) RequestPublish(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid article id")
		return
	}

	res, st, err := a.gate.RequestPublish(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"result":  res,
			"balance": st,
			"wallet":  a.cache.Display(),
		})
	case errors.Is(err, publish.ErrBlockedLocally):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":   err.Error(),
			"code":    "balance_below_threshold",
			"balance": st,
		})
	case errors.Is(err, publish.ErrTopUpRequired):
		c.JSON(http.StatusConflict, gin.H{
			"error":    err.Error(),
			"code":     "top_up_required",
			"redirect": publish.TopUpPath,
			"balance":  st,
		})
	default:
		writeError(c, err)
	}
}
