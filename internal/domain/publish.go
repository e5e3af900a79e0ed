package domain

import "github.com/shopspring/decimal"

// BalanceCheck is the publish-balance gate reading
type BalanceCheck struct {
	CurrentBalance       Amount `json:"current_balance"`
	HasSufficientBalance bool   `json:"has_sufficient_balance"`
	RequiredBalance      Amount `json:"required_balance"`
}

// Shortfall is how much is missing to reach the required balance, never negative.
func (b BalanceCheck) Shortfall() decimal.Decimal {
	missing := b.RequiredBalance.Decimal().Sub(b.CurrentBalance.Decimal())
	if missing.IsNegative() {
		return decimal.Zero
	}
	return missing
}

// PublishResult is the response of the request-publish endpoint
type PublishResult struct {
	ArticleID int64         `json:"article_id"`
	Status    ArticleStatus `json:"status"`
	Message   string        `json:"message,omitempty"`
}
