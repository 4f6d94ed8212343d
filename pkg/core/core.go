package core

import "context"

// MarketSource provides read access to the upstream market-data API.
// Both endpoints are rate limited upstream; implementations are expected to
// throttle and retry on their own, and any error is treated by callers as
// "no data this cycle".
type MarketSource interface {
	// Tickers returns all exchange quotes currently listed for one asset.
	Tickers(ctx context.Context, coinID string) ([]Quote, error)

	// TopCoins returns one page of the asset listing ranked by 24h volume.
	TopCoins(ctx context.Context, page, perPage int) ([]CoinInfo, error)
}

// UserStore persists subscriber profiles. Implementations must enforce
// uniqueness on the user id and keep watchlist/blacklist set semantics.
type UserStore interface {
	// Get returns the profile for id, or ErrUserNotFound.
	Get(ctx context.Context, id int64) (*User, error)

	// Upsert creates or fully replaces a profile.
	Upsert(ctx context.Context, user *User) error

	// Update applies mutate to the stored profile under the store's
	// single-document atomicity and persists the result.
	Update(ctx context.Context, id int64, mutate func(*User)) error

	// AddToSet inserts value into the named set field. It reports whether
	// the value was actually added (false means it was already present).
	AddToSet(ctx context.Context, id int64, field SetField, value string) (bool, error)

	// PullFromSet removes value from the named set field. It reports
	// whether the value was present.
	PullFromSet(ctx context.Context, id int64, field SetField, value string) (bool, error)

	// All returns every stored profile.
	All(ctx context.Context) ([]*User, error)
}

// TopCoinStore holds the cached ranked top coin list. The cache is either
// absent (ErrEmptyCache) or a complete snapshot; Replace swaps the whole
// snapshot so readers never observe a partial list.
type TopCoinStore interface {
	Replace(ctx context.Context, coins []CoinInfo) error
	List(ctx context.Context) ([]CoinInfo, error)
}

// AlertSink delivers a formatted opportunity alert to a single user.
type AlertSink interface {
	SendAlert(userID int64, alert Alert) error
}

// Notifier broadcasts operational messages to the configured recipients.
type Notifier interface {
	Notify(text string)
	OnError(err error)
}

// NotifierWithStart is a notifier that owns a background loop, such as the
// Telegram long poller.
type NotifierWithStart interface {
	Notifier
	Start()
}
