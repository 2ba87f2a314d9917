package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeType distinguishes the direction of a swap.
type TradeType string

// Trade directions.
const (
	TradeBuy  TradeType = "buy"
	TradeSell TradeType = "sell"
)

// TradeStatus tracks a trade through execution.
type TradeStatus string

// Trade statuses.
const (
	TradePending  TradeStatus = "pending"
	TradeExecuted TradeStatus = "executed"
	TradeFailed   TradeStatus = "failed"
)

// Trade is an immutable record of a single executed swap. Amounts are decimal
// strings so no precision is lost across serialization boundaries.
type Trade struct {
	ID        string
	Type      TradeType
	TokenIn   string
	TokenOut  string
	AmountIn  string
	AmountOut string
	// Price is the quote price of TokenOut at execution time.
	Price     float64
	Timestamp time.Time
	Status    TradeStatus
}

// AmountInDecimal parses the input amount; zero on malformed records.
func (t Trade) AmountInDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(t.AmountIn)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// AmountOutDecimal parses the output amount; zero on malformed records.
func (t Trade) AmountOutDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(t.AmountOut)
	if err != nil {
		return decimal.Zero
	}
	return d
}
