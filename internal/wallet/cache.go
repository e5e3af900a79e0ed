package wallet

import (
	"context"
	"errors"
	"sync"
	"time"

	"readearn/internal/domain"

	"github.com/shopspring/decimal"
)

var ErrUnavailable = errors.New("wallet service unavailable")

// Fetcher loads the authoritative wallet snapshot.
type Fetcher interface {
	Info(ctx context.Context) (*domain.WalletInfo, error)
}

// Cache holds the last wallet snapshot. Any mutating action (reward, gift,
// publish, payment request) must be followed by Refresh or Invalidate.
// Provisional debits only change what Display shows.
type Cache struct {
	base Fetcher
	now  func() time.Time

	mu        sync.RWMutex
	snap      *domain.WalletInfo
	fetchedAt time.Time
	balance   domain.Provisional
	points    domain.Provisional
}

func NewCache(base Fetcher) *Cache {
	return &Cache{base: base, now: time.Now}
}

// Refresh fetches a new snapshot and drops provisional overrides. On error
// the previous snapshot is kept.
func (c *Cache) Refresh(ctx context.Context) (domain.WalletInfo, error) {
	if c == nil || c.base == nil {
		return domain.WalletInfo{}, ErrUnavailable
	}

	info, err := c.base.Info(ctx)
	if err != nil {
		return domain.WalletInfo{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	snap := *info
	c.snap = &snap
	c.fetchedAt = c.now()
	c.balance.Confirm(info.Balance.Decimal())
	c.points.Confirm(info.RewardPoints.Decimal())
	return snap, nil
}

// Current returns the last authoritative snapshot.
func (c *Cache) Current() (domain.WalletInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return domain.WalletInfo{}, false
	}
	return *c.snap, true
}

// CurrentOrRefresh returns the snapshot, fetching one when there is none.
func (c *Cache) CurrentOrRefresh(ctx context.Context) (domain.WalletInfo, error) {
	if info, ok := c.Current(); ok {
		return info, nil
	}
	return c.Refresh(ctx)
}

// Invalidate forgets the snapshot so the next reader has to fetch.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = nil
}

// ApplyProvisionalDebit lowers the displayed balance until the next Refresh.
func (c *Cache) ApplyProvisionalDebit(amount decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balance.Adjust(amount.Neg())
}

// View is what a UI shows for the wallet.
type View struct {
	Balance      decimal.Decimal `json:"balance"`
	RewardPoints decimal.Decimal `json:"reward_points"`
	Provisional  bool            `json:"provisional"`
	Loaded       bool            `json:"loaded"`
	FetchedAt    time.Time       `json:"fetched_at"`
}

func (c *Cache) Display() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return View{
		Balance:      c.balance.Display(),
		RewardPoints: c.points.Display(),
		Provisional:  c.balance.IsProvisional() || c.points.IsProvisional(),
		Loaded:       c.snap != nil,
		FetchedAt:    c.fetchedAt,
	}
}
