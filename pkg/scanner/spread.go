// Package scanner implements spread detection over exchange ticker quotes and
// the periodic tasks that drive it.
package scanner

import (
	"strings"

	"github.com/MohammedTeir/ArbitrageScanner/pkg/core"
	"github.com/shopspring/decimal"
)

// Filter is the effective per-user configuration applied to one quote set.
type Filter struct {
	Target    string   // required quote currency, compared case-sensitively
	MinVolume float64  // 24h volume floor, USD
	MinProfit float64  // fraction; 0.02 accepts spreads of 2% and above
	Blacklist []string // asset ids excluded regardless of other criteria
}

// FilterFromUser derives the filter for one subscriber profile.
func FilterFromUser(u *core.User) Filter {
	return Filter{
		Target:    u.Target,
		MinVolume: u.MinVolume,
		MinProfit: u.MinProfit,
		Blacklist: u.Blacklist,
	}
}

// FindOpportunity scans the quote set of a single asset for a qualifying
// cross-exchange spread. It is pure: quotes in, opportunity out.
//
// Quotes are discarded when the target currency differs, the reported volume
// is below the floor, the source attached no trust classification, or the
// asset is blacklisted. Among the survivors the minimum- and maximum-price
// quotes become the buy and sell legs; ties keep the first-seen quote. The
// spread qualifies when its percentage, rounded to two decimals, reaches the
// profit floor (inclusive).
func FindOpportunity(coinID string, quotes []core.Quote, f Filter) (*core.Opportunity, bool) {
	var eligible []core.Quote
	for _, q := range quotes {
		if q.Target != f.Target {
			continue
		}
		if q.Volume.Valid && q.Volume.Value < f.MinVolume {
			continue
		}
		if q.Trust == "" {
			continue
		}
		if blacklisted(f.Blacklist, q.Base) {
			continue
		}
		eligible = append(eligible, q)
	}

	if len(eligible) == 0 {
		return nil, false
	}

	cheap, expensive := eligible[0], eligible[0]
	for _, q := range eligible {
		// A surviving quote without a price makes the whole scan
		// unusable for this asset.
		if !q.Price.Valid {
			return nil, false
		}
		if q.Price.Value < cheap.Price.Value {
			cheap = q
		}
		if q.Price.Value > expensive.Price.Value {
			expensive = q
		}
	}

	if cheap.Price.Value <= 0 {
		return nil, false
	}

	buy := decimal.NewFromFloat(cheap.Price.Value)
	sell := decimal.NewFromFloat(expensive.Price.Value)
	profit := sell.Sub(buy).Div(buy).Mul(decimal.NewFromInt(100)).Round(2)

	floor := decimal.NewFromFloat(f.MinProfit).Mul(decimal.NewFromInt(100))
	if profit.LessThan(floor) {
		return nil, false
	}

	return &core.Opportunity{
		Coin:          coinID,
		Pair:          strings.ToUpper(coinID) + "/" + f.Target,
		BuyMarket:     cheap.Market,
		BuyURL:        cheap.TradeURL,
		BuyPrice:      cheap.Price.Value,
		SellMarket:    expensive.Market,
		SellURL:       expensive.TradeURL,
		SellPrice:     expensive.Price.Value,
		Volume:        cheap.Volume.Value,
		Trust:         cheap.Trust,
		ProfitPercent: profit.InexactFloat64(),
	}, true
}

func blacklisted(blacklist []string, assetID string) bool {
	for _, entry := range blacklist {
		if strings.EqualFold(entry, assetID) {
			return true
		}
	}
	return false
}
