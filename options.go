package arbscanner

import "github.com/MohammedTeir/ArbitrageScanner/pkg/core"

// Option is a function that configures the assembled scanner.
type Option func(*ArbitrageScanner)

// WithUserStore injects a prebuilt user store instead of opening the
// configured one.
func WithUserStore(store core.UserStore) Option {
	return func(a *ArbitrageScanner) {
		a.users = store
	}
}

// WithTopCoinStore injects a prebuilt top coin cache.
func WithTopCoinStore(cache core.TopCoinStore) Option {
	return func(a *ArbitrageScanner) {
		a.cache = cache
	}
}

// WithAlertSink replaces the default Telegram (+ optional mail) delivery
// chain, e.g. to layer deduplication over it.
func WithAlertSink(sink core.AlertSink) Option {
	return func(a *ArbitrageScanner) {
		a.sink = sink
	}
}
