package core

import (
	"encoding/json"
	"time"
)

// TrustTier is the confidence classification the market-data source attaches
// to a quote. An empty tier means the source reported none; such quotes are
// excluded from spread evaluation.
type TrustTier string

const (
	TrustHigh   TrustTier = "high"
	TrustMedium TrustTier = "medium"
	TrustLow    TrustTier = "low"
)

// Glyph returns the indicator used in alert payloads for this tier.
// Unknown non-empty tiers render like low confidence.
func (t TrustTier) Glyph() string {
	switch t {
	case TrustHigh:
		return "🟢"
	case TrustMedium:
		return "🟡"
	case "":
		return ""
	default:
		return "🔴"
	}
}

// MaybeFloat is a float64 that tolerates malformed upstream JSON: any value
// that is not a number (null, string, object) decodes as absent rather than
// being coerced or failing the whole document.
type MaybeFloat struct {
	Value float64
	Valid bool
}

func Float(v float64) MaybeFloat { return MaybeFloat{Value: v, Valid: true} }

func (f *MaybeFloat) UnmarshalJSON(data []byte) error {
	// json.Unmarshal treats null as a no-op on float64 and reports no error.
	if string(data) == "null" {
		*f = MaybeFloat{}
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		*f = MaybeFloat{}
		return nil
	}
	*f = MaybeFloat{Value: v, Valid: true}
	return nil
}

func (f MaybeFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Quote is one exchange's listing of an asset against a target currency,
// valid only for the scan cycle that fetched it.
type Quote struct {
	Base     string     // asset id, e.g. "bitcoin"
	Target   string     // quote currency symbol, e.g. "USDT"
	Market   string     // originating market name
	TradeURL string     // deep link to the market's trade page
	Trust    TrustTier  // empty when the source reported none
	Price    MaybeFloat // converted last price, USD
	Volume   MaybeFloat // converted 24h volume, USD
}

// CoinInfo is one entry of the cached top coin listing.
type CoinInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	MarketCap float64   `json:"market_cap"`
	UpdatedAt time.Time `json:"updated_at"`
}
