package handlers

import (
	"net/http"
	"strconv"

	"readearn/internal/domain"

	"github.com/gin-gonic/gin"
)

// Admin handlers only wrap the backend, which decides who is an admin.
// A 403 from the backend is passed through.

func (h *Handler) PendingArticles(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	items, err := a.admin.PendingArticles(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}

func (h *Handler) ModerateArticle(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid article id")
		return
	}
	var req domain.Moderation
	if err := c.ShouldBindJSON(&req); err != nil || (req.Action != "approve" && req.Action != "reject") {
		badRequest(c, "action must be approve or reject")
		return
	}
	if req.Action == "reject" && req.Reason == "" {
		badRequest(c, "a reason is required to reject")
		return
	}

	ctx := c.Request.Context()
	if err := a.admin.ModerateArticle(ctx, id, req.Action == "approve", req.Reason); err != nil {
		writeError(c, err)
		return
	}
	h.Audit.LogAdminAction(ctx, a.userID, domain.AuditActionModerateArticle, id, map[string]interface{}{
		"decision": req.Action,
		"reason":   req.Reason,
	})
	c.JSON(http.StatusOK, gin.H{"ok": true, "article_id": id, "action": req.Action})
}

func (h *Handler) PendingPayments(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	items, err := a.admin.PendingPayments(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}

type ReviewRequest struct {
	Note   string `json:"note"`
	Reason string `json:"reason"`
}

func (h *Handler) ApprovePayment(c *gin.Context) {
	h.reviewPayment(c, true)
}

func (h *Handler) RejectPayment(c *gin.Context) {
	h.reviewPayment(c, false)
}

func (h *Handler) reviewPayment(c *gin.Context, approve bool) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid request id")
		return
	}
	var req ReviewRequest
	// the body is optional
	_ = c.ShouldBindJSON(&req)

	ctx := c.Request.Context()
	var (
		res    *domain.PaymentRequest
		action string
	)
	if approve {
		res, err = a.admin.ApprovePayment(ctx, id, req.Note)
		action = domain.AuditActionApprovePayment
	} else {
		if req.Reason == "" {
			badRequest(c, "a reason is required to reject")
			return
		}
		res, err = a.admin.RejectPayment(ctx, id, req.Reason)
		action = domain.AuditActionRejectPayment
	}
	if err != nil {
		writeError(c, err)
		return
	}

	h.Audit.LogAdminAction(ctx, a.userID, action, id, map[string]interface{}{
		"note":   req.Note,
		"reason": req.Reason,
	})
	c.JSON(http.StatusOK, res)
}
