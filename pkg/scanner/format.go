package scanner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MohammedTeir/ArbitrageScanner/pkg/core"
)

const alertHeadline = "📢 Arbitrage opportunity"

// BuildAlert turns a qualifying spread into the display payload delivered to
// the user. It is deterministic and free of side effects; transports decide
// how the structured fields are rendered.
func BuildAlert(coinName string, opp *core.Opportunity) core.Alert {
	if coinName == "" {
		coinName = opp.Coin
	}

	return core.Alert{
		Headline: alertHeadline,
		CoinName: coinName,
		Pair:     opp.Pair,
		Buy: core.AlertLeg{
			Market:     opp.BuyMarket,
			URL:        opp.BuyURL,
			PriceLabel: formatPrice(opp.BuyPrice),
		},
		Sell: core.AlertLeg{
			Market:     opp.SellMarket,
			URL:        opp.SellURL,
			PriceLabel: formatPrice(opp.SellPrice),
		},
		VolumeLabel: formatUSD(opp.Volume),
		ProfitLabel: fmt.Sprintf("%.2f%%", opp.ProfitPercent),
		TrustGlyph:  opp.Trust.Glyph(),
	}
}

// formatPrice keeps enough precision for sub-cent assets without drowning
// large ones in decimals.
func formatPrice(v float64) string {
	if v != 0 && v < 1 {
		return strconv.FormatFloat(v, 'f', 6, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// formatUSD renders a volume with a currency prefix and thousands separators,
// e.g. 1234567.8 -> "$1,234,567".
func formatUSD(v float64) string {
	whole := strconv.FormatInt(int64(v), 10)

	negative := strings.HasPrefix(whole, "-")
	digits := strings.TrimPrefix(whole, "-")

	var sb strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}

	if negative {
		return "-$" + sb.String()
	}
	return "$" + sb.String()
}
