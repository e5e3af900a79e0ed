package domain

import "time"

// WalletInfo is a point-in-time snapshot of the user's wallet. The backend owns
// the real values; a snapshot is stale as soon as the user spends or earns.
type WalletInfo struct {
	Balance      Amount    `json:"balance"`
	RewardPoints Amount    `json:"reward_points"`
	TotalEarned  Amount    `json:"total_earned"`
	TotalSpent   Amount    `json:"total_spent"`
	Currency     string    `json:"currency,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TransactionType - тип операции в кошельке
type TransactionType string

const (
	TransactionTypeReward     TransactionType = "reward"
	TransactionTypeGiftSent   TransactionType = "gift_sent"
	TransactionTypeGiftIn     TransactionType = "gift_received"
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypePublishFee TransactionType = "publish_fee"
	TransactionTypeConversion TransactionType = "conversion"
)

// Transaction is one wallet ledger line
type Transaction struct {
	ID          int64           `json:"id"`
	Type        TransactionType `json:"type"`
	Amount      Amount          `json:"amount"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TransactionPage is one page of the ledger
type TransactionPage struct {
	Count   int64         `json:"count"`
	Next    string        `json:"next,omitempty"`
	Results []Transaction `json:"results"`
}

// GiftRequest transfers reward points from the reader to an article author
type GiftRequest struct {
	RecipientID int64  `json:"recipient_id"`
	Amount      Amount `json:"amount"`
	ArticleID   int64  `json:"article_id"`
	Message     string `json:"message,omitempty"`
}

// GiftResult is the gift endpoint response. RemainingBalance may be absent.
type GiftResult struct {
	RemainingBalance Amount `json:"remaining_balance"`
	Message          string `json:"message,omitempty"`
}

// ConversionResult is returned when reward points are converted to balance
type ConversionResult struct {
	PointsConverted Amount `json:"points_converted"`
	AmountCredited  Amount `json:"amount_credited"`
	Balance         Amount `json:"balance"`
	RewardPoints    Amount `json:"reward_points"`
}

// PaymentRequestType distinguishes top-ups from payouts
type PaymentRequestType string

const (
	PaymentRequestDeposit    PaymentRequestType = "deposit"
	PaymentRequestWithdrawal PaymentRequestType = "withdraw"
)

// PaymentRequestStatus is the admin approval state
type PaymentRequestStatus string

const (
	PaymentStatusPending  PaymentRequestStatus = "pending"
	PaymentStatusApproved PaymentRequestStatus = "approved"
	PaymentStatusRejected PaymentRequestStatus = "rejected"
)

// PaymentRequest asks an administrator to move money in or out of the wallet
type PaymentRequest struct {
	ID         int64                `json:"id,omitempty"`
	Type       PaymentRequestType   `json:"type"`
	Amount     Amount               `json:"amount"`
	Method     string               `json:"method,omitempty"`
	Reference  string               `json:"reference,omitempty"`
	Status     PaymentRequestStatus `json:"status,omitempty"`
	AdminNote  string               `json:"admin_note,omitempty"`
	UserID     int64                `json:"user_id,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	ReviewedAt *time.Time           `json:"reviewed_at,omitempty"`
}
