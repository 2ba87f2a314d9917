package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdesk/flowdesk/internal/domain"
)

func TestParseBuyCommands(t *testing.T) {
	tests := []struct {
		input  string
		token  string
		amount string
	}{
		{"Buy $100 of ETH", "ETH", "100"},
		{"buy 50 eth", "ETH", "50"},
		{"BUY $25.5 worth of WBTC", "WBTC", "25.5"},
		{"buy $10 of btc", "WBTC", "10"},
		{"please buy $75 of eth now", "ETH", "75"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			reply := Parse(tt.input, domain.NewBalance(), nil)
			require.NotNil(t, reply.Intent, "no intent for %q", tt.input)
			assert.Equal(t, domain.TradeBuy, reply.Intent.Type)
			assert.Equal(t, "USDC", reply.Intent.TokenIn)
			assert.Equal(t, tt.token, reply.Intent.TokenOut)
			assert.True(t, reply.Intent.Amount.Equal(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestParseSellCommands(t *testing.T) {
	reply := Parse("Sell 0.01 ETH", domain.NewBalance(), nil)
	require.NotNil(t, reply.Intent)
	assert.Equal(t, domain.TradeSell, reply.Intent.Type)
	assert.Equal(t, "ETH", reply.Intent.TokenIn)
	assert.Equal(t, "USDC", reply.Intent.TokenOut)
	assert.True(t, reply.Intent.Amount.Equal(decimal.RequireFromString("0.01")))
}

func TestParseSwapCommands(t *testing.T) {
	reply := Parse("Swap 100 USDC for ETH", domain.NewBalance(), nil)
	require.NotNil(t, reply.Intent)
	assert.Equal(t, domain.TradeBuy, reply.Intent.Type)
	assert.Equal(t, "USDC", reply.Intent.TokenIn)
	assert.Equal(t, "ETH", reply.Intent.TokenOut)

	reply = Parse("swap 0.5 eth to wbtc", domain.NewBalance(), nil)
	require.NotNil(t, reply.Intent)
	assert.Equal(t, "ETH", reply.Intent.TokenIn)
	assert.Equal(t, "WBTC", reply.Intent.TokenOut)
}

func TestParseRejectsBuyingUSDC(t *testing.T) {
	reply := Parse("Buy $100 of USDC", domain.NewBalance(), nil)
	assert.Nil(t, reply.Intent)
	assert.Contains(t, reply.Message, "already have USDC")
}

func TestParsePortfolioQuery(t *testing.T) {
	balance := domain.NewBalance()
	balance.Set(domain.AssetUSDC, decimal.NewFromInt(400))
	balance.Set(domain.AssetETH, decimal.RequireFromString("0.04"))
	prices := domain.PriceData{"ETH": {USD: 2500}}

	reply := Parse("Show my portfolio", balance, prices)
	require.Nil(t, reply.Intent)
	assert.Contains(t, reply.Message, "ETH")
	assert.Contains(t, reply.Message, "USDC")
	// 400 USDC + 0.04 ETH at 2500.
	assert.Contains(t, reply.Message, "$500.00")
}

func TestParsePortfolioEmpty(t *testing.T) {
	reply := Parse("what's my balance?", domain.NewBalance(), nil)
	require.Nil(t, reply.Intent)
	assert.Contains(t, reply.Message, "no active holdings")
}

func TestParsePriceQuery(t *testing.T) {
	prices := domain.PriceData{
		"ETH":  {USD: 2500, USD24hChange: 1.5},
		"WBTC": {USD: 60000, USD24hChange: -0.3},
	}

	reply := Parse("how much is ETH?", domain.NewBalance(), prices)
	require.Nil(t, reply.Intent)
	assert.Contains(t, reply.Message, "$2500.00")
	assert.Contains(t, reply.Message, "+1.50%")
	assert.Contains(t, reply.Message, "-0.30%")
}

func TestParseHelpAndFallback(t *testing.T) {
	reply := Parse("help", domain.NewBalance(), nil)
	assert.Contains(t, reply.Message, "Buy tokens")

	reply = Parse("hello", domain.NewBalance(), nil)
	assert.Contains(t, reply.Message, "FlowDesk")

	reply = Parse("do a barrel roll", domain.NewBalance(), nil)
	assert.Nil(t, reply.Intent)
	assert.Contains(t, reply.Message, "not sure")
}
