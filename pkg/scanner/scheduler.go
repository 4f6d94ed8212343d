package scanner

import (
	"context"
	"errors"
	"time"

	"github.com/MohammedTeir/ArbitrageScanner/pkg/core"
	"github.com/MohammedTeir/ArbitrageScanner/pkg/logger"
	"github.com/StudioSol/set"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const (
	defaultScanInterval = 10 * time.Second
	defaultFetchTimeout = 15 * time.Second
	defaultConcurrency  = 4
)

// Scheduler runs the recurring spread scan: once per interval it enumerates
// all subscriber profiles, resolves each user's coin set, fetches live quotes
// and dispatches an alert for every qualifying spread.
//
// The scheduler performs no deduplication across ticks; an opportunity that
// persists re-alerts on every tick it is observed. Dedup can be layered on
// the AlertSink without touching detection.
type Scheduler struct {
	users  core.UserStore
	cache  core.TopCoinStore
	market core.MarketSource
	sink   core.AlertSink
	log    logger.Logger

	interval     time.Duration
	fetchTimeout time.Duration
	concurrency  int
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

func WithScanInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithFetchTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

func WithConcurrency(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewScheduler wires a scan scheduler from its collaborators.
func NewScheduler(
	users core.UserStore,
	cache core.TopCoinStore,
	market core.MarketSource,
	sink core.AlertSink,
	log logger.Logger,
	options ...SchedulerOption,
) *Scheduler {
	s := &Scheduler{
		users:        users,
		cache:        cache,
		market:       market,
		sink:         sink,
		log:          log,
		interval:     defaultScanInterval,
		fetchTimeout: defaultFetchTimeout,
		concurrency:  defaultConcurrency,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// Run executes scan ticks until the context is canceled. A failing tick is
// logged and never stops the loop.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.WithError(err).Error("scan tick failed")
			}
		}
	}
}

// Tick performs one full scan over all users. The top coin snapshot is read
// once for the whole tick; per-user work is isolated so one user's failure
// never aborts the others.
func (s *Scheduler) Tick(ctx context.Context) error {
	top, err := s.cache.List(ctx)
	if err != nil && !errors.Is(err, core.ErrEmptyCache) {
		s.log.WithError(err).Warn("top coin cache unavailable, watchlists only")
	}

	users, err := s.users.All(ctx)
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)

	for _, user := range users {
		if user.Paused {
			continue
		}

		user := user
		group.Go(func() error {
			s.scanUser(ctx, user, top)
			return nil
		})
	}

	return group.Wait()
}

// scanUser evaluates every coin in one user's resolved coin set.
func (s *Scheduler) scanUser(ctx context.Context, user *core.User, top []core.CoinInfo) {
	log := s.log.WithField("user", user.ID)

	for _, coinID := range s.resolveCoins(user, top) {
		if ctx.Err() != nil {
			return
		}

		// The pause flag may flip mid-tick; the stored profile is
		// authoritative at fetch time.
		fresh, err := s.users.Get(ctx, user.ID)
		if err != nil {
			log.WithError(err).Error("failed to reload profile, skipping user")
			return
		}
		if fresh.Paused {
			return
		}

		opp, ok := s.scanCoin(ctx, fresh, coinID)
		if !ok {
			continue
		}

		name := coinID
		if info, found := lo.Find(top, func(c core.CoinInfo) bool { return c.ID == coinID }); found {
			name = info.Name
		}

		if err := s.sink.SendAlert(user.ID, BuildAlert(name, opp)); err != nil {
			log.WithError(err).WithField("coin", coinID).Error("failed to deliver alert")
		}
	}
}

// scanCoin fetches live quotes for one coin and runs spread detection.
// Fetch failures are logged and reported as "no opportunity this cycle".
func (s *Scheduler) scanCoin(ctx context.Context, user *core.User, coinID string) (*core.Opportunity, bool) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	quotes, err := s.market.Tickers(fetchCtx, coinID)
	if err != nil {
		s.log.WithError(err).
			WithFields(map[string]any{"user": user.ID, "coin": coinID}).
			Error("failed to fetch tickers")
		return nil, false
	}

	if len(quotes) == 0 {
		return nil, false
	}

	return FindOpportunity(coinID, quotes, FilterFromUser(user))
}

// resolveCoins returns the de-duplicated, order-preserving coin set for one
// user: the cached top list when the profile opted in, else the watchlist.
func (s *Scheduler) resolveCoins(user *core.User, top []core.CoinInfo) []string {
	coins := set.NewLinkedHashSetString()

	if user.UseTopList {
		for _, info := range top {
			coins.Add(info.ID)
		}
	} else {
		for _, coinID := range user.Watchlist {
			coins.Add(coinID)
		}
	}

	resolved := make([]string, 0, coins.Length())
	for coinID := range coins.Iter() {
		resolved = append(resolved, coinID)
	}

	return resolved
}
