// Package arbscanner wires the arbitrage scanner: periodic spread scans over
// live exchange listings, a cached top coin list, and a Telegram interface
// for per-user thresholds, watchlists and pause control.
package arbscanner

import (
	"context"
	"fmt"

	"github.com/MohammedTeir/ArbitrageScanner/pkg/core"
	"github.com/MohammedTeir/ArbitrageScanner/pkg/notification"
	"github.com/MohammedTeir/ArbitrageScanner/pkg/scanner"
	"github.com/MohammedTeir/ArbitrageScanner/pkg/storage"
)

// ArbitrageScanner is the assembled application.
type ArbitrageScanner struct {
	settings *core.Settings
	market   core.MarketSource

	users core.UserStore
	cache core.TopCoinStore
	sink  core.AlertSink

	telegram  *notification.Telegram
	scheduler *scanner.Scheduler
	refresher *scanner.Refresher
}

// NewScanner assembles the application from settings and a market source.
// Storage, alert sink and the notifier can be swapped through options;
// anything not overridden is built from the settings. A store that cannot be
// opened aborts construction: running half-initialized is worse than not
// starting.
func NewScanner(
	ctx context.Context,
	settings *core.Settings,
	market core.MarketSource,
	options ...Option,
) (*ArbitrageScanner, error) {
	app := &ArbitrageScanner{
		settings: settings,
		market:   market,
	}

	for _, option := range options {
		option(app)
	}

	if err := app.initStorage(); err != nil {
		return nil, err
	}

	if err := app.initNotification(); err != nil {
		return nil, err
	}

	app.scheduler = scanner.NewScheduler(
		app.users,
		app.cache,
		app.market,
		app.sink,
		DefaultLog,
		scanner.WithScanInterval(settings.Scan.Interval),
		scanner.WithFetchTimeout(settings.Scan.FetchTimeout),
		scanner.WithConcurrency(settings.Scan.Concurrency),
	)

	app.refresher = scanner.NewRefresher(
		app.market,
		app.cache,
		DefaultLog,
		scanner.WithRefreshInterval(settings.Scan.RefreshInterval),
		scanner.WithTopSize(settings.Scan.TopSize),
	)

	return app, nil
}

// initStorage opens the configured store unless one was injected.
func (a *ArbitrageScanner) initStorage() error {
	if a.users != nil && a.cache != nil {
		return nil
	}

	var (
		users core.UserStore
		cache core.TopCoinStore
	)

	switch a.settings.Storage.Driver {
	case "", "buntdb":
		store, err := storage.NewFromFile(a.settings.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		users, cache = store, store
	case "memory":
		store, err := storage.NewFromMemory()
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		users, cache = store, store
	case "sqlite":
		store, err := storage.NewFromSQLite(a.settings.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		// The snapshot cache is rebuilt on startup, so it does not need
		// the relational store.
		mem, err := storage.NewFromMemory()
		if err != nil {
			return fmt.Errorf("failed to open snapshot cache: %w", err)
		}
		users, cache = store, mem
	default:
		return fmt.Errorf("unknown storage driver %q", a.settings.Storage.Driver)
	}

	if a.users == nil {
		a.users = users
	}
	if a.cache == nil {
		a.cache = cache
	}

	return nil
}

// initNotification builds the Telegram controller and the alert sink chain.
func (a *ArbitrageScanner) initNotification() error {
	dispatcher := notification.NewDispatcher(a.users, DefaultLog)

	telegram, err := notification.NewTelegram(
		a.users,
		dispatcher,
		a.settings.Telegram,
		a.settings.Defaults,
		DefaultLog,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram: %w", err)
	}

	a.telegram = telegram

	sinks := []core.AlertSink{telegram}
	if a.settings.Mail.Enabled {
		sinks = append(sinks, notification.NewMail(notification.MailParams{
			SMTPServerPort:    a.settings.Mail.SMTPServerPort,
			SMTPServerAddress: a.settings.Mail.SMTPServerAddress,
			To:                a.settings.Mail.To,
			From:              a.settings.Mail.From,
			Password:          a.settings.Mail.Password,
		}))
	}

	if a.sink == nil {
		a.sink = multiSink(sinks)
	}

	return nil
}

// Run starts the Telegram poller and the two periodic tasks, blocking until
// the context is canceled.
func (a *ArbitrageScanner) Run(ctx context.Context) error {
	a.telegram.Start()

	go a.refresher.Run(ctx)
	a.scheduler.Run(ctx)

	return ctx.Err()
}

// multiSink fans one alert out to every configured sink. Delivery failures
// on one channel do not block the others.
type multiSink []core.AlertSink

func (m multiSink) SendAlert(userID int64, alert core.Alert) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.SendAlert(userID, alert); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
