package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/flowdesk/flowdesk/internal/domain"
)

// ValidateIntent checks a trade against the user's preference record and the
// session balance before it is handed to the manager. The manager itself
// does not enforce preferences; this is the caller-side gate.
func ValidateIntent(intent TradeIntent, prefs domain.DeFiPreferences, balance domain.Balance, prices domain.PriceData) error {
	priceIn := prices.USDOrDefault(intent.TokenIn, 1)
	valueUSD := intent.Amount.Mul(decimal.NewFromFloat(priceIn))

	maxTrade := decimal.NewFromFloat(prefs.MaxTradeSize)
	if valueUSD.GreaterThan(maxTrade) {
		return domain.NewTradeLimitError("max trade size",
			fmt.Sprintf("$%s > $%s", valueUSD.StringFixed(2), maxTrade.StringFixed(2)))
	}

	have := balance.Get(intent.TokenIn)
	if have.LessThan(intent.Amount) {
		return domain.NewInsufficientBalanceError(intent.TokenIn, have, intent.Amount)
	}
	return nil
}
