package wallet

import (
	"context"
	"errors"
	"testing"

	"readearn/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	info  domain.WalletInfo
	err   error
	calls int
}

func (s *stubFetcher) Info(context.Context) (*domain.WalletInfo, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	info := s.info
	return &info, nil
}

func TestCacheRefreshAndCurrent(t *testing.T) {
	base := &stubFetcher{info: domain.WalletInfo{Balance: domain.NewAmount(200), RewardPoints: domain.NewAmount(10)}}
	c := NewCache(base)

	_, ok := c.Current()
	assert.False(t, ok)

	info, err := c.CurrentOrRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "200.00", info.Balance.String())

	_, err = c.CurrentOrRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, base.calls, "second read served from cache")

	c.Invalidate()
	_, ok = c.Current()
	assert.False(t, ok)
	_, err = c.CurrentOrRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, base.calls)
}

func TestCacheRefreshErrorKeepsSnapshot(t *testing.T) {
	base := &stubFetcher{info: domain.WalletInfo{Balance: domain.NewAmount(5)}}
	c := NewCache(base)
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	base.err = errors.New("down")
	_, err = c.Refresh(context.Background())
	require.Error(t, err)

	info, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "5.00", info.Balance.String())
}

func TestProvisionalDebitIsDisplayOnly(t *testing.T) {
	base := &stubFetcher{info: domain.WalletInfo{Balance: domain.NewAmount(300)}}
	c := NewCache(base)
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	c.ApplyProvisionalDebit(decimal.NewFromInt(150))

	view := c.Display()
	assert.True(t, view.Provisional)
	assert.True(t, view.Balance.Equal(decimal.NewFromInt(150)))

	info, _ := c.Current()
	assert.Equal(t, "300.00", info.Balance.String(), "snapshot untouched")

	base.info.Balance = domain.NewAmount(140)
	_, err = c.Refresh(context.Background())
	require.NoError(t, err)

	view = c.Display()
	assert.False(t, view.Provisional)
	assert.True(t, view.Balance.Equal(decimal.NewFromInt(140)))
}

func TestNilCacheUnavailable(t *testing.T) {
	var c *Cache
	_, err := c.Refresh(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}
