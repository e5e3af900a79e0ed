package domain

import "time"

// AuditLog represents an audit log entry for tracking important actions
type AuditLog struct {
	ID        int64                  `db:"id" json:"id"`
	UserID    int64                  `db:"user_id" json:"user_id"`
	Action    string                 `db:"action" json:"action"`
	Category  string                 `db:"category" json:"category"`
	Details   map[string]interface{} `db:"details" json:"details"`
	IP        string                 `db:"ip" json:"ip,omitempty"`
	UserAgent string                 `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// Audit action categories
const (
	AuditCategoryAuth    = "auth"
	AuditCategoryReading = "reading"
	AuditCategoryWallet  = "wallet"
	AuditCategoryPublish = "publish"
	AuditCategoryAdmin   = "admin"
)

// Audit actions
const (
	// Auth actions
	AuditActionLogin          = "login"
	AuditActionLogout         = "logout"
	AuditActionSessionExpired = "session_expired"

	// Reading actions
	AuditActionReadingStart    = "reading_start"
	AuditActionReadingDegraded = "reading_degraded"
	AuditActionReadingComplete = "reading_complete"
	AuditActionRewardCollected = "reward_collected"
	AuditActionRewardFailed    = "reward_failed"
	AuditActionAlreadyRewarded = "already_rewarded"

	// Wallet actions
	AuditActionGiftSent       = "gift_sent"
	AuditActionGiftRejected   = "gift_rejected"
	AuditActionPaymentRequest = "payment_request"
	AuditActionConvertPoints  = "convert_points"

	// Publish actions
	AuditActionPublishRequest = "publish_request"
	AuditActionPublishBlocked = "publish_blocked"
	AuditActionPublishTopUp   = "publish_top_up_required"

	// Admin actions
	AuditActionModerateArticle = "moderate_article"
	AuditActionApprovePayment  = "approve_payment"
	AuditActionRejectPayment   = "reject_payment"
)
