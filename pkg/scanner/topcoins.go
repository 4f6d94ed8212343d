package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MohammedTeir/ArbitrageScanner/pkg/core"
	"github.com/MohammedTeir/ArbitrageScanner/pkg/logger"
)

const (
	defaultRefreshInterval = time.Hour
	defaultTopSize         = 100
)

// Refresher keeps the ranked top coin cache current. Each successful refresh
// replaces the whole snapshot; on failure the previous snapshot stays
// untouched so readers never see a partial or empty cache.
type Refresher struct {
	market core.MarketSource
	cache  core.TopCoinStore
	log    logger.Logger

	interval time.Duration
	size     int
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

func WithRefreshInterval(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithTopSize(n int) RefresherOption {
	return func(r *Refresher) {
		if n > 0 {
			r.size = n
		}
	}
}

// NewRefresher wires a top coin cache refresher.
func NewRefresher(market core.MarketSource, cache core.TopCoinStore, log logger.Logger, options ...RefresherOption) *Refresher {
	r := &Refresher{
		market:   market,
		cache:    cache,
		log:      log,
		interval: defaultRefreshInterval,
		size:     defaultTopSize,
	}

	for _, option := range options {
		option(r)
	}

	return r
}

// Run refreshes immediately, then on every interval until the context is
// canceled. Failures are logged and retried on the next interval.
func (r *Refresher) Run(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
		r.log.WithError(err).Error("initial top coin refresh failed")
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.log.WithError(err).Error("top coin refresh failed")
			}
		}
	}
}

// Refresh fetches the volume-ranked listing and swaps the cache snapshot.
func (r *Refresher) Refresh(ctx context.Context) error {
	coins, err := r.market.TopCoins(ctx, 1, r.size)
	if err != nil {
		return fmt.Errorf("failed to fetch ranked listing: %w", err)
	}

	if len(coins) > r.size {
		coins = coins[:r.size]
	}

	now := time.Now().UTC()
	for i := range coins {
		coins[i].UpdatedAt = now
	}

	if err := r.cache.Replace(ctx, coins); err != nil {
		return fmt.Errorf("failed to replace top coin snapshot: %w", err)
	}

	r.log.Infof("top coin cache refreshed with %d entries", len(coins))
	return nil
}
