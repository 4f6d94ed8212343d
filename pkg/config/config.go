// Package config loads the scanner configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MohammedTeir/ArbitrageScanner/pkg/core"
	"github.com/spf13/viper"
	str2duration "github.com/xhit/go-str2duration/v2"
)

const envPrefix = "ARBSCANNER"

// Load reads the configuration file (YAML) and environment overrides and
// returns validated settings. A missing file is fine as long as the required
// values arrive via environment; a missing Telegram token is a bootstrap
// failure and aborts startup.
func Load(path string) (*core.Settings, error) {
	v := viper.New()

	v.SetConfigName("arbscanner")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/arbscanner")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	settings, err := build(v)
	if err != nil {
		return nil, err
	}

	if err := validate(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("market.base_url", "")
	v.SetDefault("market.rate_per_sec", 0.5)

	v.SetDefault("scan.interval", "10s")
	v.SetDefault("scan.refresh_interval", "1h")
	v.SetDefault("scan.fetch_timeout", "15s")
	v.SetDefault("scan.top_size", 100)
	v.SetDefault("scan.concurrency", 4)

	v.SetDefault("defaults.min_profit_percent", 2.0)
	v.SetDefault("defaults.min_volume", 10000)
	v.SetDefault("defaults.target", "USDT")

	v.SetDefault("storage.driver", "buntdb")
	v.SetDefault("storage.path", "arbscanner.db")
}

func build(v *viper.Viper) (*core.Settings, error) {
	scanInterval, err := duration(v, "scan.interval")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := duration(v, "scan.refresh_interval")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := duration(v, "scan.fetch_timeout")
	if err != nil {
		return nil, err
	}

	return &core.Settings{
		Telegram: core.TelegramSettings{
			Token:  v.GetString("telegram.token"),
			Admins: int64Slice(v.GetIntSlice("telegram.admins")),
		},
		Market: core.MarketSettings{
			BaseURL:    v.GetString("market.base_url"),
			APIKey:     v.GetString("market.api_key"),
			RatePerSec: v.GetFloat64("market.rate_per_sec"),
		},
		Scan: core.ScanSettings{
			Interval:        scanInterval,
			RefreshInterval: refreshInterval,
			FetchTimeout:    fetchTimeout,
			TopSize:         v.GetInt("scan.top_size"),
			Concurrency:     v.GetInt("scan.concurrency"),
		},
		Mail: core.MailSettings{
			Enabled:           v.GetBool("mail.enabled"),
			SMTPServerAddress: v.GetString("mail.smtp_address"),
			SMTPServerPort:    v.GetInt("mail.smtp_port"),
			From:              v.GetString("mail.from"),
			To:                v.GetString("mail.to"),
			Password:          v.GetString("mail.password"),
		},
		Storage: core.StorageSettings{
			Driver: v.GetString("storage.driver"),
			Path:   v.GetString("storage.path"),
		},
		Defaults: core.ProfileDefaults{
			MinProfit: v.GetFloat64("defaults.min_profit_percent") / 100,
			MinVolume: v.GetFloat64("defaults.min_volume"),
			Target:    strings.ToUpper(v.GetString("defaults.target")),
		},
	}, nil
}

// validate checks the profile defaults; the Telegram token is checked at bot
// construction, so read-only commands work without one.
func validate(settings *core.Settings) error {
	if settings.Defaults.MinProfit <= 0 {
		return errors.New("defaults.min_profit_percent must be positive")
	}
	if settings.Defaults.MinVolume < 0 {
		return errors.New("defaults.min_volume must not be negative")
	}
	if n := len(settings.Defaults.Target); n < 1 || n > 5 {
		return errors.New("defaults.target must be 1-5 characters")
	}
	return nil
}

// duration parses interval values in the extended form str2duration
// understands, e.g. "90s" or "1h30m".
func duration(v *viper.Viper, key string) (time.Duration, error) {
	parsed, err := str2duration.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return parsed, nil
}

func int64Slice(values []int) []int64 {
	result := make([]int64, 0, len(values))
	for _, value := range values {
		result = append(result, int64(value))
	}
	return result
}
