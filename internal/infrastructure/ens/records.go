// Package ens codecs the com.flowdesk.* ENS text records that hold a user's
// trading preferences. Record lookup itself is the wallet stack's job; this
// package only parses and serializes the values.
package ens

import (
	"strconv"
	"strings"

	"github.com/flowdesk/flowdesk/internal/domain"
)

// Text-record keys.
const (
	KeySlippage       = "com.flowdesk.slippage"
	KeyRiskLevel      = "com.flowdesk.risk-level"
	KeyFavoritePairs  = "com.flowdesk.favorite-pairs"
	KeyMaxTradeSize   = "com.flowdesk.max-trade-size"
	KeyTakeProfit     = "com.flowdesk.take-profit"
	KeyStopLoss       = "com.flowdesk.stop-loss"
	KeyPreferredChain = "com.flowdesk.preferred-chain"
	KeySessionBudget  = "com.flowdesk.session-budget"
)

// TextRecord is one key/value pair to write back to ENS.
type TextRecord struct {
	Key   string
	Value string
}

// ParsePreferences builds a preference record from raw text records, falling
// back to defaults for missing or malformed values.
func ParsePreferences(records map[string]string) domain.DeFiPreferences {
	prefs := domain.DefaultPreferences()

	if v, ok := parseFloat(records[KeySlippage]); ok {
		prefs.Slippage = v
	}
	switch domain.RiskLevel(records[KeyRiskLevel]) {
	case domain.RiskConservative, domain.RiskModerate, domain.RiskAggressive:
		prefs.RiskLevel = domain.RiskLevel(records[KeyRiskLevel])
	}
	if raw := records[KeyFavoritePairs]; raw != "" {
		prefs.FavoritePairs = strings.Split(raw, ",")
	}
	if v, ok := parseFloat(records[KeyMaxTradeSize]); ok {
		prefs.MaxTradeSize = v
	}
	if v, ok := parseFloat(records[KeyTakeProfit]); ok {
		prefs.TakeProfit = v
	}
	if v, ok := parseFloat(records[KeyStopLoss]); ok {
		prefs.StopLoss = v
	}
	if raw := records[KeyPreferredChain]; raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			prefs.PreferredChain = v
		}
	}
	if v, ok := parseFloat(records[KeySessionBudget]); ok {
		prefs.SessionBudget = v
	}
	return prefs
}

// SerializePreferences renders a preference record as text records, in a
// stable order.
func SerializePreferences(prefs domain.DeFiPreferences) []TextRecord {
	return []TextRecord{
		{Key: KeySlippage, Value: formatFloat(prefs.Slippage)},
		{Key: KeyRiskLevel, Value: string(prefs.RiskLevel)},
		{Key: KeyFavoritePairs, Value: strings.Join(prefs.FavoritePairs, ",")},
		{Key: KeyMaxTradeSize, Value: formatFloat(prefs.MaxTradeSize)},
		{Key: KeyTakeProfit, Value: formatFloat(prefs.TakeProfit)},
		{Key: KeyStopLoss, Value: formatFloat(prefs.StopLoss)},
		{Key: KeyPreferredChain, Value: strconv.FormatUint(prefs.PreferredChain, 10)},
		{Key: KeySessionBudget, Value: formatFloat(prefs.SessionBudget)},
	}
}

func parseFloat(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
