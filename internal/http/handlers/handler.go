package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"readearn/internal/api"
	"readearn/internal/audit"
	"readearn/internal/auth"
	"readearn/internal/clock"
	"readearn/internal/domain"
	"readearn/internal/engagement"
	"readearn/internal/http/middleware"
	"readearn/internal/logger"
	"readearn/internal/publish"
	"readearn/internal/reading"
	"readearn/internal/service"
	"readearn/internal/wallet"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// HandlerConfig holds configuration for handler
type HandlerConfig struct {
	APIBaseURL        string
	APITimeout        time.Duration
	PublishMinBalance decimal.Decimal
	AllowedOrigin     string
	// HTTPClient replaces the default outbound client, used by tests.
	HTTPClient *http.Client
	// Clock dates account activity for SweepAccounts.
	Clock clock.Clock
}

// SessionCloser drops live connections of a BFF session. ws.Hub implements it.
type SessionCloser interface {
	CloseSession(sid string)
	Count(sid string) int
}

type Handler struct {
	cfg      HandlerConfig
	Tokens   auth.Store
	Registry *reading.Registry
	Audit    *audit.Service
	Sockets  SessionCloser

	mu       sync.Mutex
	accounts map[string]*account
}

// account is what the BFF keeps for one browser session: an API client bound
// to the session's tokens and the per-user caches built on it.
type account struct {
	sid    string
	userID int64
	// guarded by Handler.mu
	lastSeen time.Time

	client   *api.Client
	articles *service.ArticleService
	rewards  *service.RewardService
	wallets  *service.WalletService
	admin    *service.AdminService
	cache    *wallet.Cache
	gate     *publish.Gate
	tracker  *engagement.Tracker
}

func NewHandler(cfg HandlerConfig, tokens auth.Store, registry *reading.Registry, auditSvc *audit.Service) *Handler {
	if cfg.PublishMinBalance.IsZero() {
		cfg.PublishMinBalance = decimal.NewFromInt(150)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	return &Handler{
		cfg:      cfg,
		Tokens:   tokens,
		Registry: registry,
		Audit:    auditSvc,
		accounts: make(map[string]*account),
	}
}

func (h *Handler) newClient(sid string) *api.Client {
	opts := []api.Option{
		api.WithSessionExpired(func(ctx context.Context) { h.expire(ctx, sid) }),
	}
	if h.cfg.HTTPClient != nil {
		opts = append(opts, api.WithHTTPClient(h.cfg.HTTPClient))
	} else if h.cfg.APITimeout > 0 {
		opts = append(opts, api.WithTimeout(h.cfg.APITimeout))
	}
	return api.NewClient(h.cfg.APIBaseURL, auth.Bind(h.Tokens, sid), opts...)
}

func (h *Handler) newAccount(sid string, userID int64, client *api.Client) *account {
	a := &account{
		sid:      sid,
		userID:   userID,
		lastSeen: h.cfg.Clock.Now(),
		client:   client,
		articles: service.NewArticleService(client),
		rewards:  service.NewRewardService(client),
		wallets:  service.NewWalletService(client),
		admin:    service.NewAdminService(client),
	}
	a.cache = wallet.NewCache(a.wallets)
	a.gate = publish.NewGate(service.NewPublishService(client), a.articles, a.cache,
		h.cfg.PublishMinBalance, publish.WithJournal(h.Audit, userID))
	a.tracker = engagement.NewTracker(a.articles)
	return a
}

// account resolves the caller's account, rebuilding it from the token store
// after a restart. It writes the 401 itself and returns false when the
// session is not logged in.
func (h *Handler) account(c *gin.Context) (*account, bool) {
	sid := middleware.SessionID(c)

	h.mu.Lock()
	a, ok := h.accounts[sid]
	if ok {
		a.lastSeen = h.cfg.Clock.Now()
	}
	h.mu.Unlock()
	if ok {
		return a, true
	}

	tokens, err := h.Tokens.Load(c.Request.Context(), sid)
	if err != nil {
		if !errors.Is(err, auth.ErrNoTokens) {
			logger.WithContext(c.Request.Context()).Error("load tokens failed", "error", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not logged in", "redirect": "/login"})
		return nil, false
	}

	var userID int64
	if claims, err := auth.ParseClaims(tokens.Access); err == nil {
		userID = claims.UserID
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if a, ok := h.accounts[sid]; ok {
		return a, true
	}
	a = h.newAccount(sid, userID, h.newClient(sid))
	h.accounts[sid] = a
	return a, true
}

// SweepAccounts drops accounts that have not been used for idle and hold no
// reading session or socket. Their tokens stay in the store, so the next
// request of the session rebuilds the account.
func (h *Handler) SweepAccounts(idle time.Duration) int {
	cutoff := h.cfg.Clock.Now().Add(-idle)

	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for sid, a := range h.accounts {
		if a.lastSeen.After(cutoff) || h.Registry.Owned(sid) > 0 {
			continue
		}
		if h.Sockets != nil && h.Sockets.Count(sid) > 0 {
			continue
		}
		delete(h.accounts, sid)
		n++
	}
	return n
}

// StartCleanup sweeps idle accounts every interval until ctx is done. A
// non-positive interval or idle disables it.
func (h *Handler) StartCleanup(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 || idle <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := h.SweepAccounts(idle); n > 0 {
					logger.Debug("idle accounts dropped", "count", n)
				}
			}
		}
	}()
}

// Accounts counts the accounts held in memory.
func (h *Handler) Accounts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.accounts)
}

// deps are the reading-session collaborators of a.
func (a *account) deps() reading.Deps {
	return reading.Deps{Rewards: a.rewards, Wallet: a.cache, UserID: a.userID}
}

// expire is the api client's logout hook: everything held for sid goes.
func (h *Handler) expire(ctx context.Context, sid string) {
	userID := h.forget(sid)
	h.Audit.Log(ctx, userID, domain.AuditActionSessionExpired, domain.AuditCategoryAuth, map[string]interface{}{
		"sid": sid,
	})
}

// forget drops the account, reading sessions and sockets of sid.
func (h *Handler) forget(sid string) int64 {
	h.mu.Lock()
	a, ok := h.accounts[sid]
	delete(h.accounts, sid)
	h.mu.Unlock()

	h.Registry.CloseOwner(sid)
	if h.Sockets != nil {
		h.Sockets.CloseSession(sid)
	}
	if ok {
		return a.userID
	}
	return 0
}

// getUserID извлекает user_id аккаунта текущей сессии
func (h *Handler) getUserID(c *gin.Context) (int64, bool) {
	a, ok := h.account(c)
	if !ok {
		return 0, false
	}
	return a.userID, true
}
