package publish

import (
	"context"
	"errors"
	"fmt"

	"readearn/internal/api"
	"readearn/internal/domain"
	"readearn/internal/logger"

	"github.com/shopspring/decimal"
)

var (
	// ErrBlockedLocally means the last balance check was insufficient and no
	// publish request was sent.
	ErrBlockedLocally = errors.New("balance below the publishing threshold")
	// ErrTopUpRequired means the backend refused for insufficient balance.
	// The caller should send the user to the wallet, not retry.
	ErrTopUpRequired = errors.New("top up your wallet to publish")
)

// TopUpPath is where a UI sends the user when ErrTopUpRequired is returned.
const TopUpPath = "/wallet"

// Backend is the remote side of the gate.
type Backend interface {
	CheckBalance(ctx context.Context) (*domain.BalanceCheck, error)
	RequestPublish(ctx context.Context, articleID int64) (*domain.PublishResult, error)
}

// Drafts creates articles.
type Drafts interface {
	CreateDraft(ctx context.Context, d domain.ArticleDraft) (*domain.Article, error)
}

// Wallet is the part of wallet.Cache the gate touches.
type Wallet interface {
	Refresh(ctx context.Context) (domain.WalletInfo, error)
	ApplyProvisionalDebit(amount decimal.Decimal)
}

// Gate guards publish requests behind a minimum wallet balance.
type Gate struct {
	backend   Backend
	drafts    Drafts
	wallet    Wallet
	threshold decimal.Decimal
	journal   Journal
	userID    int64
}

// Journal records publish outcomes.
type Journal interface {
	Log(ctx context.Context, userID int64, action, category string, details map[string]interface{})
}

type Option func(*Gate)

func WithJournal(j Journal, userID int64) Option {
	return func(g *Gate) {
		g.journal = j
		g.userID = userID
	}
}

func NewGate(backend Backend, drafts Drafts, wallet Wallet, threshold decimal.Decimal, opts ...Option) *Gate {
	g := &Gate{backend: backend, drafts: drafts, wallet: wallet, threshold: threshold}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Status is the gate's reading of the wallet.
type Status struct {
	CurrentBalance       decimal.Decimal `json:"current_balance"`
	RequiredBalance      decimal.Decimal `json:"required_balance"`
	HasSufficientBalance bool            `json:"has_sufficient_balance"`
	Shortfall            decimal.Decimal `json:"shortfall"`
	// CheckFailed is set when the balance could not be fetched.
	CheckFailed bool   `json:"check_failed"`
	Error       string `json:"error,omitempty"`
}

// CheckBalance fetches the current balance. It fails closed: when the check
// errors the balance counts as zero and insufficient.
func (g *Gate) CheckBalance(ctx context.Context) Status {
	st := Status{RequiredBalance: g.threshold}

	res, err := g.backend.CheckBalance(ctx)
	if err != nil {
		logger.WithContext(ctx).Warn("publish balance check failed", "error", err)
		st.CurrentBalance = decimal.Zero
		st.Shortfall = g.threshold
		st.CheckFailed = true
		st.Error = api.Message(err)
		return st
	}

	required := g.threshold
	if res.RequiredBalance.Valid && res.RequiredBalance.Decimal().GreaterThan(required) {
		required = res.RequiredBalance.Decimal()
	}
	st.RequiredBalance = required
	st.CurrentBalance = res.CurrentBalance.Decimal()

	check := domain.BalanceCheck{
		CurrentBalance:  res.CurrentBalance,
		RequiredBalance: domain.AmountFromDecimal(required),
	}
	st.Shortfall = check.Shortfall()
	// both sides must agree before the action is enabled
	st.HasSufficientBalance = res.HasSufficientBalance && st.Shortfall.IsZero()
	return st
}

// CreateDraft is always allowed.
func (g *Gate) CreateDraft(ctx context.Context, d domain.ArticleDraft) (*domain.Article, error) {
	return g.drafts.CreateDraft(ctx, d)
}

// RequestPublish checks the balance, then asks the backend to publish.
// It distinguishes three failures: ErrBlockedLocally (no publish call made),
// ErrTopUpRequired (backend says the balance is short) and anything else.
func (g *Gate) RequestPublish(ctx context.Context, articleID int64) (*domain.PublishResult, Status, error) {
	st := g.CheckBalance(ctx)
	if !st.HasSufficientBalance {
		g.log(ctx, domain.AuditActionPublishBlocked, articleID, map[string]interface{}{
			"shortfall": st.Shortfall.String(),
		})
		return nil, st, fmt.Errorf("%w: need %s more", ErrBlockedLocally, st.Shortfall.StringFixed(2))
	}

	res, err := g.backend.RequestPublish(ctx, articleID)
	if err != nil {
		if errors.Is(err, api.ErrInsufficientBalance) {
			if _, rerr := g.wallet.Refresh(ctx); rerr != nil {
				logger.WithContext(ctx).Warn("wallet refresh failed", "error", rerr)
			}
			g.log(ctx, domain.AuditActionPublishTopUp, articleID, nil)
			return nil, st, fmt.Errorf("%w: %s", ErrTopUpRequired, api.Message(err))
		}
		return nil, st, err
	}

	// shown until the next authoritative fetch
	g.wallet.ApplyProvisionalDebit(st.RequiredBalance)
	g.log(ctx, domain.AuditActionPublishRequest, articleID, nil)
	return res, st, nil
}

func (g *Gate) log(ctx context.Context, action string, articleID int64, details map[string]interface{}) {
	if g.journal == nil {
		return
	}
	if details == nil {
		details = make(map[string]interface{})
	}
	details["article_id"] = articleID
	g.journal.Log(ctx, g.userID, action, domain.AuditCategoryPublish, details)
}
