package domain

// RiskLevel is the user's stated risk appetite.
type RiskLevel string

// Risk levels.
const (
	RiskConservative RiskLevel = "conservative"
	RiskModerate     RiskLevel = "moderate"
	RiskAggressive   RiskLevel = "aggressive"
)

// DeFiPreferences is the user's trading preference record, read from ENS
// text records. The lifecycle manager does not enforce these; callers
// validate trades against them before execution.
type DeFiPreferences struct {
	Slippage       float64
	RiskLevel      RiskLevel
	FavoritePairs  []string
	MaxTradeSize   float64
	TakeProfit     float64
	StopLoss       float64
	PreferredChain uint64
	SessionBudget  float64
}

// DefaultPreferences returns the preference record used when a user has no
// ENS records set.
func DefaultPreferences() DeFiPreferences {
	return DeFiPreferences{
		Slippage:       0.5,
		RiskLevel:      RiskModerate,
		FavoritePairs:  []string{"ETH/USDC", "WBTC/USDC"},
		MaxTradeSize:   1000,
		TakeProfit:     5,
		StopLoss:       3,
		PreferredChain: 42161,
		SessionBudget:  500,
	}
}
