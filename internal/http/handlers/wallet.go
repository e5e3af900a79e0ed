package handlers

import (
	"net/http"

	"readearn/internal/api"
	"readearn/internal/domain"
	"readearn/internal/logger"

	"github.com/gin-gonic/gin"
)

type ConvertRequest struct {
	Points domain.Amount `json:"points"`
}

type PaymentRequestBody struct {
	Amount    domain.Amount `json:"amount"`
	Method    string        `json:"method"`
	Reference string        `json:"reference"`
}

// GetWallet refreshes the snapshot. When the backend is unreachable the last
// known snapshot is served and marked stale.
func (h *Handler) GetWallet(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}

	info, err := a.cache.Refresh(c.Request.Context())
	if err != nil {
		cached, has := a.cache.Current()
		if !has {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"wallet":  cached,
			"display": a.cache.Display(),
			"stale":   true,
			"error":   api.Message(err),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallet": info, "display": a.cache.Display()})
}

func (h *Handler) Transactions(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	page, err := a.wallets.Transactions(c.Request.Context(), queryPage(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) ConvertPoints(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Points.Valid || !req.Points.Value.IsPositive() {
		badRequest(c, "points must be a positive amount")
		return
	}
	ctx := c.Request.Context()

	res, err := a.wallets.ConvertRewardPoints(ctx, req.Points.Value)
	if err != nil {
		writeError(c, err)
		return
	}
	if _, err := a.cache.Refresh(ctx); err != nil {
		logger.WithContext(ctx).Warn("wallet refresh after conversion failed", "error", err)
		a.cache.Invalidate()
	}
	h.Audit.Log(ctx, a.userID, domain.AuditActionConvertPoints, domain.AuditCategoryWallet, map[string]interface{}{
		"points": req.Points.String(),
	})
	c.JSON(http.StatusOK, gin.H{"conversion": res, "display": a.cache.Display()})
}

func (h *Handler) RequestDeposit(c *gin.Context) {
	h.paymentRequest(c, domain.PaymentRequestDeposit)
}

func (h *Handler) RequestWithdrawal(c *gin.Context) {
	h.paymentRequest(c, domain.PaymentRequestWithdrawal)
}

func (h *Handler) paymentRequest(c *gin.Context, kind domain.PaymentRequestType) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	var req PaymentRequestBody
	if err := c.ShouldBindJSON(&req); err != nil || !req.Amount.Valid || !req.Amount.Value.IsPositive() {
		badRequest(c, "amount must be a positive number")
		return
	}
	if req.Method == "" {
		badRequest(c, "method is required")
		return
	}
	ctx := c.Request.Context()

	var (
		res *domain.PaymentRequest
		err error
	)
	if kind == domain.PaymentRequestDeposit {
		res, err = a.wallets.RequestDeposit(ctx, req.Amount.Value, req.Method, req.Reference)
	} else {
		res, err = a.wallets.RequestWithdrawal(ctx, req.Amount.Value, req.Method, req.Reference)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	// the balance changes once an admin reviews the request
	a.cache.Invalidate()
	h.Audit.Log(ctx, a.userID, domain.AuditActionPaymentRequest, domain.AuditCategoryWallet, map[string]interface{}{
		"type":   string(kind),
		"amount": req.Amount.String(),
		"method": req.Method,
	})
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) PaymentRequests(c *gin.Context) {
	a, ok := h.account(c)
	if !ok {
		return
	}
	items, err := a.wallets.PaymentRequests(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}
