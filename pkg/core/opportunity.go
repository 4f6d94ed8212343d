package core

// Opportunity is a qualifying cross-exchange spread for one asset, derived
// from a single scan cycle and discarded after the alert is built.
type Opportunity struct {
	Coin          string // asset id
	Pair          string // e.g. "XRP/USDT"
	BuyMarket     string
	BuyURL        string
	BuyPrice      float64
	SellMarket    string
	SellURL       string
	SellPrice     float64
	Volume        float64 // 24h volume at the cheap leg, USD
	Trust         TrustTier
	ProfitPercent float64 // rounded to 2 decimal places
}

// AlertLeg is one side of a rendered opportunity.
type AlertLeg struct {
	Market     string
	URL        string
	PriceLabel string
}

// Alert is the transport-agnostic display payload built from an Opportunity.
type Alert struct {
	Headline    string
	CoinName    string
	Pair        string
	Buy         AlertLeg
	Sell        AlertLeg
	VolumeLabel string // cheap-leg 24h volume with currency prefix
	ProfitLabel string
	TrustGlyph  string
}
