package scanner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/MohammedTeir/ArbitrageScanner/pkg/core"
	"github.com/MohammedTeir/ArbitrageScanner/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUserStore is an in-memory core.UserStore for tests.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[int64]*core.User
}

func newFakeUserStore(users ...*core.User) *fakeUserStore {
	store := &fakeUserStore{users: make(map[int64]*core.User)}
	for _, user := range users {
		store.users[user.ID] = user
	}
	return store
}

func (f *fakeUserStore) Get(_ context.Context, id int64) (*core.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (f *fakeUserStore) Upsert(_ context.Context, user *core.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserStore) Update(_ context.Context, id int64, mutate func(*core.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return core.ErrUserNotFound
	}
	mutate(user)
	return nil
}

func (f *fakeUserStore) AddToSet(ctx context.Context, id int64, field core.SetField, value string) (bool, error) {
	added := false
	err := f.Update(ctx, id, func(user *core.User) {
		target := user.Set(field)
		for _, entry := range *target {
			if strings.EqualFold(entry, value) {
				return
			}
		}
		*target = append(*target, value)
		added = true
	})
	return added, err
}

func (f *fakeUserStore) PullFromSet(ctx context.Context, id int64, field core.SetField, value string) (bool, error) {
	removed := false
	err := f.Update(ctx, id, func(user *core.User) {
		target := user.Set(field)
		kept := (*target)[:0]
		for _, entry := range *target {
			if strings.EqualFold(entry, value) {
				removed = true
				continue
			}
			kept = append(kept, entry)
		}
		*target = kept
	})
	return removed, err
}

func (f *fakeUserStore) All(_ context.Context) ([]*core.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]*core.User, 0, len(f.users))
	for _, user := range f.users {
		clone := *user
		users = append(users, &clone)
	}
	return users, nil
}

// fakeMarket serves canned quotes per coin and can fail selectively.
type fakeMarket struct {
	mu      sync.Mutex
	quotes  map[string][]core.Quote
	fail    map[string]error
	fetches []string
	onFetch func(coinID string)
}

func (f *fakeMarket) Tickers(_ context.Context, coinID string) ([]core.Quote, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, coinID)
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook(coinID)
	}

	if err, ok := f.fail[coinID]; ok {
		return nil, err
	}
	return f.quotes[coinID], nil
}

func (f *fakeMarket) TopCoins(_ context.Context, _, _ int) ([]core.CoinInfo, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeMarket) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetches)
}

// fakeCache is a trivial core.TopCoinStore.
type fakeCache struct {
	mu    sync.Mutex
	coins []core.CoinInfo
	err   error
}

func (f *fakeCache) Replace(_ context.Context, coins []core.CoinInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coins = coins
	return nil
}

func (f *fakeCache) List(_ context.Context) ([]core.CoinInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.coins, nil
}

// fakeSink records delivered alerts.
type fakeSink struct {
	mu     sync.Mutex
	alerts []core.Alert
	to     []int64
}

func (f *fakeSink) SendAlert(userID int64, alert core.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	f.to = append(f.to, userID)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

func testUser(id int64, coins ...string) *core.User {
	user := core.NewUser(id, core.ProfileDefaults{
		MinProfit: 0.02,
		MinVolume: 1000,
		Target:    "USDT",
	})
	user.Watchlist = coins
	return user
}

func spreadQuotes() []core.Quote {
	return []core.Quote{
		quote("A", 1.00, 50000),
		quote("B", 1.05, 60000),
	}
}

func TestScheduler_TickDispatchesAlert(t *testing.T) {
	store := newFakeUserStore(testUser(1, "x"))
	market := &fakeMarket{quotes: map[string][]core.Quote{"x": spreadQuotes()}}
	sink := &fakeSink{}

	sched := NewScheduler(store, &fakeCache{err: core.ErrEmptyCache}, market, sink, logger.Nop(), WithConcurrency(1))
	require.NoError(t, sched.Tick(context.Background()))

	require.Equal(t, 1, sink.count())
	assert.Equal(t, int64(1), sink.to[0])
	assert.Equal(t, "5.00%", sink.alerts[0].ProfitLabel)
}

func TestScheduler_PausedUserNotScanned(t *testing.T) {
	user := testUser(1, "x")
	user.Paused = true

	store := newFakeUserStore(user)
	market := &fakeMarket{quotes: map[string][]core.Quote{"x": spreadQuotes()}}
	sink := &fakeSink{}

	sched := NewScheduler(store, &fakeCache{err: core.ErrEmptyCache}, market, sink, logger.Nop())
	require.NoError(t, sched.Tick(context.Background()))

	assert.Zero(t, market.fetchCount())
	assert.Zero(t, sink.count())
}

func TestScheduler_PauseMidTickStopsRemainingCoins(t *testing.T) {
	store := newFakeUserStore(testUser(1, "x", "y"))
	market := &fakeMarket{quotes: map[string][]core.Quote{
		"x": spreadQuotes(),
		"y": spreadQuotes(),
	}}
	sink := &fakeSink{}

	// The pause lands after the first fetch; the per-fetch re-check must
	// see it before the second coin.
	market.onFetch = func(string) {
		_ = store.Update(context.Background(), 1, func(u *core.User) { u.Paused = true })
	}

	sched := NewScheduler(store, &fakeCache{err: core.ErrEmptyCache}, market, sink, logger.Nop(), WithConcurrency(1))
	require.NoError(t, sched.Tick(context.Background()))

	assert.Equal(t, 1, market.fetchCount())
}

func TestScheduler_FetchFailureIsIsolated(t *testing.T) {
	store := newFakeUserStore(testUser(1, "bad", "x"))
	market := &fakeMarket{
		quotes: map[string][]core.Quote{"x": spreadQuotes()},
		fail:   map[string]error{"bad": errors.New("upstream down")},
	}
	sink := &fakeSink{}

	sched := NewScheduler(store, &fakeCache{err: core.ErrEmptyCache}, market, sink, logger.Nop(), WithConcurrency(1))
	require.NoError(t, sched.Tick(context.Background()))

	assert.Equal(t, 2, market.fetchCount(), "the failing coin must not abort the rest")
	assert.Equal(t, 1, sink.count())
}

func TestScheduler_TopListMode(t *testing.T) {
	user := testUser(1)
	user.UseTopList = true

	store := newFakeUserStore(user)
	cache := &fakeCache{coins: []core.CoinInfo{
		{ID: "x", Name: "Coin X"},
		{ID: "y", Name: "Coin Y"},
	}}
	market := &fakeMarket{quotes: map[string][]core.Quote{"x": spreadQuotes()}}
	sink := &fakeSink{}

	sched := NewScheduler(store, cache, market, sink, logger.Nop(), WithConcurrency(1))
	require.NoError(t, sched.Tick(context.Background()))

	assert.Equal(t, 2, market.fetchCount())
	require.Equal(t, 1, sink.count())
	assert.Equal(t, "Coin X", sink.alerts[0].CoinName, "display name comes from the cached listing")
}

func TestScheduler_NoDedupAcrossTicks(t *testing.T) {
	store := newFakeUserStore(testUser(1, "x"))
	market := &fakeMarket{quotes: map[string][]core.Quote{"x": spreadQuotes()}}
	sink := &fakeSink{}

	sched := NewScheduler(store, &fakeCache{err: core.ErrEmptyCache}, market, sink, logger.Nop(), WithConcurrency(1))
	require.NoError(t, sched.Tick(context.Background()))
	require.NoError(t, sched.Tick(context.Background()))

	assert.Equal(t, 2, sink.count(), "a persisting opportunity re-alerts every tick")
}

func TestScheduler_WatchlistDeduplicated(t *testing.T) {
	store := newFakeUserStore(testUser(1, "x", "x"))
	market := &fakeMarket{quotes: map[string][]core.Quote{"x": spreadQuotes()}}
	sink := &fakeSink{}

	sched := NewScheduler(store, &fakeCache{err: core.ErrEmptyCache}, market, sink, logger.Nop(), WithConcurrency(1))
	require.NoError(t, sched.Tick(context.Background()))

	assert.Equal(t, 1, market.fetchCount())
}
