package notification

import (
	"context"
	"testing"

	"github.com/MohammedTeir/ArbitrageScanner/pkg/core"
	"github.com/MohammedTeir/ArbitrageScanner/pkg/logger"
	"github.com/MohammedTeir/ArbitrageScanner/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcherWithUser(t *testing.T, id int64) (*Dispatcher, *storage.BuntStorage) {
	t.Helper()

	store, err := storage.NewFromMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	user := core.NewUser(id, core.ProfileDefaults{
		MinProfit: 0.02,
		MinVolume: 10000,
		Target:    "USDT",
	})
	require.NoError(t, store.Upsert(context.Background(), user))

	return NewDispatcher(store, logger.Nop()), store
}

func TestDispatcher_NoArmedActionIgnoresText(t *testing.T) {
	dispatcher, _ := newDispatcherWithUser(t, 1)

	reply, handled := dispatcher.HandleText(context.Background(), 1, "hello")
	assert.False(t, handled)
	assert.Empty(t, reply)
}

func TestDispatcher_SetTarget(t *testing.T) {
	dispatcher, store := newDispatcherWithUser(t, 1)

	prompt := dispatcher.Expect(1, ActionSetTarget)
	assert.NotEmpty(t, prompt)

	reply, handled := dispatcher.HandleText(context.Background(), 1, "  eur ")
	require.True(t, handled)
	assert.Contains(t, reply, "EUR")

	user, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "EUR", user.Target)
}

func TestDispatcher_SetTargetTooLong(t *testing.T) {
	dispatcher, store := newDispatcherWithUser(t, 1)

	dispatcher.Expect(1, ActionSetTarget)
	reply, handled := dispatcher.HandleText(context.Background(), 1, "TETHER-USD")
	require.True(t, handled)
	assert.Contains(t, reply, "retry")

	user, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "USDT", user.Target, "an invalid reply must not change the profile")
}

func TestDispatcher_SlotClearedAfterInvalidReply(t *testing.T) {
	dispatcher, store := newDispatcherWithUser(t, 1)

	dispatcher.Expect(1, ActionSetMinProfit)
	_, handled := dispatcher.HandleText(context.Background(), 1, "abc")
	require.True(t, handled)

	// The slot is released even on invalid input; the next message is plain
	// chatter, not a retry.
	_, handled = dispatcher.HandleText(context.Background(), 1, "3")
	assert.False(t, handled)

	user, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0.02, user.MinProfit)
}

func TestDispatcher_SetMinProfitStoresFraction(t *testing.T) {
	dispatcher, store := newDispatcherWithUser(t, 1)

	dispatcher.Expect(1, ActionSetMinProfit)
	reply, handled := dispatcher.HandleText(context.Background(), 1, "3")
	require.True(t, handled)
	assert.Contains(t, reply, "3.00%")

	user, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0.03, user.MinProfit)
}

func TestDispatcher_SetMinProfitRejectsNonPositive(t *testing.T) {
	dispatcher, store := newDispatcherWithUser(t, 1)

	for _, input := range []string{"-1", "0", "many"} {
		dispatcher.Expect(1, ActionSetMinProfit)
		reply, handled := dispatcher.HandleText(context.Background(), 1, input)
		require.True(t, handled, "input %q", input)
		assert.Contains(t, reply, "retry", "input %q", input)
	}

	user, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0.02, user.MinProfit)
}

func TestDispatcher_SetMinVolume(t *testing.T) {
	dispatcher, store := newDispatcherWithUser(t, 1)

	dispatcher.Expect(1, ActionSetMinVolume)
	_, handled := dispatcher.HandleText(context.Background(), 1, "50000")
	require.True(t, handled)

	user, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, user.MinVolume)
}

func TestDispatcher_SetMinVolumeRejectsFloat(t *testing.T) {
	dispatcher, store := newDispatcherWithUser(t, 1)

	dispatcher.Expect(1, ActionSetMinVolume)
	reply, handled := dispatcher.HandleText(context.Background(), 1, "50000.5")
	require.True(t, handled)
	assert.Contains(t, reply, "whole number")

	user, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, user.MinVolume)
}

func TestDispatcher_WatchlistAddIsIdempotent(t *testing.T) {
	dispatcher, store := newDispatcherWithUser(t, 1)

	dispatcher.Expect(1, ActionWatchlistAdd)
	reply, handled := dispatcher.HandleText(context.Background(), 1, "bitcoin")
	require.True(t, handled)
	assert.Contains(t, reply, "Added")

	dispatcher.Expect(1, ActionWatchlistAdd)
	reply, handled = dispatcher.HandleText(context.Background(), 1, "Bitcoin")
	require.True(t, handled)
	assert.Contains(t, reply, "already on")

	user, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"bitcoin"}, user.Watchlist)
}

func TestDispatcher_WatchlistRemoveAbsentEntry(t *testing.T) {
	dispatcher, _ := newDispatcherWithUser(t, 1)

	dispatcher.Expect(1, ActionWatchlistRemove)
	reply, handled := dispatcher.HandleText(context.Background(), 1, "dogecoin")
	require.True(t, handled)
	assert.Contains(t, reply, "not on")
}

func TestDispatcher_BlacklistStoredLowercase(t *testing.T) {
	dispatcher, store := newDispatcherWithUser(t, 1)

	dispatcher.Expect(1, ActionBlacklistAdd)
	_, handled := dispatcher.HandleText(context.Background(), 1, "DogeCoin")
	require.True(t, handled)

	user, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"dogecoin"}, user.Blacklist)

	dispatcher.Expect(1, ActionBlacklistRemove)
	reply, handled := dispatcher.HandleText(context.Background(), 1, "DOGECOIN")
	require.True(t, handled)
	assert.Contains(t, reply, "Removed")
}

func TestDispatcher_ArmingOverridesPreviousAction(t *testing.T) {
	dispatcher, store := newDispatcherWithUser(t, 1)

	dispatcher.Expect(1, ActionSetMinVolume)
	dispatcher.Expect(1, ActionSetTarget)

	_, handled := dispatcher.HandleText(context.Background(), 1, "BTC")
	require.True(t, handled)

	user, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "BTC", user.Target)
	assert.Equal(t, 10000.0, user.MinVolume)
}
