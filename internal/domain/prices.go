package domain

import "strings"

// PricePoint is a single quote for an asset.
type PricePoint struct {
	USD          float64 `json:"usd"`
	USD24hChange float64 `json:"usd_24h_change"`
}

// PriceData maps an uppercase asset symbol to its latest quote. The feed
// refreshes this map periodically; consumers must tolerate missing symbols.
type PriceData map[string]PricePoint

// USD returns the quote for a symbol (case-insensitive) and whether it was
// present in the feed.
func (p PriceData) USD(symbol string) (float64, bool) {
	pt, ok := p[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return 0, false
	}
	return pt.USD, true
}

// USDOrDefault returns the quote for a symbol, or def when the feed has no
// entry for it. Stable-like assets default to 1 so missing quotes never block
// a trade.
func (p PriceData) USDOrDefault(symbol string, def float64) float64 {
	if usd, ok := p.USD(symbol); ok {
		return usd
	}
	return def
}
