package ens

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowdesk/flowdesk/internal/domain"
)

func TestParsePreferencesDefaults(t *testing.T) {
	prefs := ParsePreferences(nil)
	assert.Equal(t, domain.DefaultPreferences(), prefs)

	prefs = ParsePreferences(map[string]string{})
	assert.Equal(t, domain.DefaultPreferences(), prefs)
}

func TestParsePreferencesOverrides(t *testing.T) {
	prefs := ParsePreferences(map[string]string{
		KeySlippage:       "1.5",
		KeyRiskLevel:      "aggressive",
		KeyFavoritePairs:  "ETH/USDC,WBTC/USDC",
		KeyMaxTradeSize:   "2500",
		KeyTakeProfit:     "20",
		KeyStopLoss:       "10",
		KeyPreferredChain: "10",
		KeySessionBudget:  "750",
	})

	assert.Equal(t, 1.5, prefs.Slippage)
	assert.Equal(t, domain.RiskAggressive, prefs.RiskLevel)
	assert.Equal(t, []string{"ETH/USDC", "WBTC/USDC"}, prefs.FavoritePairs)
	assert.Equal(t, 2500.0, prefs.MaxTradeSize)
	assert.Equal(t, 20.0, prefs.TakeProfit)
	assert.Equal(t, 10.0, prefs.StopLoss)
	assert.Equal(t, uint64(10), prefs.PreferredChain)
	assert.Equal(t, 750.0, prefs.SessionBudget)
}

func TestParsePreferencesIgnoresMalformedValues(t *testing.T) {
	defaults := domain.DefaultPreferences()
	prefs := ParsePreferences(map[string]string{
		KeySlippage:       "very low",
		KeyRiskLevel:      "yolo",
		KeyMaxTradeSize:   "",
		KeyPreferredChain: "-1",
	})

	assert.Equal(t, defaults.Slippage, prefs.Slippage)
	assert.Equal(t, defaults.RiskLevel, prefs.RiskLevel)
	assert.Equal(t, defaults.MaxTradeSize, prefs.MaxTradeSize)
	assert.Equal(t, defaults.PreferredChain, prefs.PreferredChain)
}

func TestPreferencesRoundTrip(t *testing.T) {
	original := domain.DefaultPreferences()
	original.Slippage = 0.75
	original.RiskLevel = domain.RiskConservative
	original.FavoritePairs = []string{"ETH/USDC"}
	original.MaxTradeSize = 1234.5

	records := SerializePreferences(original)
	asMap := make(map[string]string, len(records))
	for _, rec := range records {
		asMap[rec.Key] = rec.Value
	}

	assert.Equal(t, original, ParsePreferences(asMap))
}
