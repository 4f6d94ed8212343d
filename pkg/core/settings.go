package core

import "time"

// Settings groups the process-wide configuration consumed by the scanner.
type Settings struct {
	Telegram TelegramSettings
	Market   MarketSettings
	Scan     ScanSettings
	Mail     MailSettings
	Storage  StorageSettings
	Defaults ProfileDefaults
}

// TelegramSettings holds configuration for the Telegram transport.
type TelegramSettings struct {
	Token  string
	Admins []int64 // recipients of operational broadcasts; empty allows any user
}

// MarketSettings holds configuration for the market-data API.
type MarketSettings struct {
	BaseURL string
	APIKey  string
	// RatePerSec caps outgoing requests; the upstream API is rate limited.
	RatePerSec float64
}

// ScanSettings controls the two periodic tasks.
type ScanSettings struct {
	Interval        time.Duration // spread scan tick
	RefreshInterval time.Duration // top coin cache refresh
	FetchTimeout    time.Duration // bound on a single upstream fetch
	TopSize         int           // entries kept from the ranked listing
	Concurrency     int           // parallel user scans per tick
}

// MailSettings holds the optional SMTP notifier configuration.
type MailSettings struct {
	Enabled           bool
	SMTPServerAddress string
	SMTPServerPort    int
	From              string
	To                string
	Password          string
}

// StorageSettings selects and configures the persistent store.
type StorageSettings struct {
	Driver string // "buntdb", "sqlite" or "memory"
	Path   string // database file path
}
