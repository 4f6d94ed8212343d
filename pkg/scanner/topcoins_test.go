package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/MohammedTeir/ArbitrageScanner/pkg/core"
	"github.com/MohammedTeir/ArbitrageScanner/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listMarket serves a fixed ranked listing, or fails.
type listMarket struct {
	coins []core.CoinInfo
	err   error
}

func (m *listMarket) Tickers(context.Context, string) ([]core.Quote, error) {
	return nil, errors.New("not implemented")
}

func (m *listMarket) TopCoins(context.Context, int, int) ([]core.CoinInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.coins, nil
}

func TestRefresher_ReplacesSnapshot(t *testing.T) {
	cache := &fakeCache{coins: []core.CoinInfo{{ID: "stale"}}}
	market := &listMarket{coins: []core.CoinInfo{
		{ID: "bitcoin", Name: "Bitcoin"},
		{ID: "ethereum", Name: "Ethereum"},
	}}

	refresher := NewRefresher(market, cache, logger.Nop())
	require.NoError(t, refresher.Refresh(context.Background()))

	coins, err := cache.List(context.Background())
	require.NoError(t, err)
	require.Len(t, coins, 2)
	assert.Equal(t, "bitcoin", coins[0].ID)
	assert.False(t, coins[0].UpdatedAt.IsZero(), "entries are stamped on refresh")
}

func TestRefresher_FailureLeavesCacheUntouched(t *testing.T) {
	cache := &fakeCache{coins: []core.CoinInfo{{ID: "bitcoin"}}}
	market := &listMarket{err: errors.New("rate limited")}

	refresher := NewRefresher(market, cache, logger.Nop())
	require.Error(t, refresher.Refresh(context.Background()))

	coins, err := cache.List(context.Background())
	require.NoError(t, err)
	require.Len(t, coins, 1)
	assert.Equal(t, "bitcoin", coins[0].ID)
}

func TestRefresher_TruncatesOversizedListing(t *testing.T) {
	cache := &fakeCache{}
	market := &listMarket{coins: []core.CoinInfo{
		{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"},
	}}

	refresher := NewRefresher(market, cache, logger.Nop(), WithTopSize(2))
	require.NoError(t, refresher.Refresh(context.Background()))

	coins, err := cache.List(context.Background())
	require.NoError(t, err)
	require.Len(t, coins, 2)
	assert.Equal(t, "a", coins[0].ID)
	assert.Equal(t, "b", coins[1].ID)
}
