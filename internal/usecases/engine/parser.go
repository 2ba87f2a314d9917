// Package engine turns natural-language trading commands into structured
// trade intents and validates them against user preferences before they
// reach the session manager.
package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/flowdesk/flowdesk/internal/domain"
)

// TradeIntent is a structured trade command extracted from user input.
type TradeIntent struct {
	Type     domain.TradeType
	TokenIn  string
	TokenOut string
	Amount   decimal.Decimal
}

// Reply is the parser's answer: a message, a trade intent, or both.
type Reply struct {
	Message string
	Intent  *TradeIntent
}

var (
	buyPattern  = regexp.MustCompile(`(?i)buy\s+\$?(\d+(?:\.\d+)?)\s+(?:of\s+|worth\s+(?:of\s+)?)?(\w+)`)
	sellPattern = regexp.MustCompile(`(?i)sell\s+\$?(\d+(?:\.\d+)?)\s+(?:of\s+)?(\w+)`)
	swapPattern = regexp.MustCompile(`(?i)swap\s+(\d+(?:\.\d+)?)\s+(\w+)\s+(?:for|to)\s+(\w+)`)
)

// Parse classifies one line of user input. It never fails: input that
// matches nothing yields a help message.
func Parse(input string, balance domain.Balance, prices domain.PriceData) Reply {
	lower := strings.ToLower(strings.TrimSpace(input))

	if m := buyPattern.FindStringSubmatch(lower); m != nil {
		amount, err := decimal.NewFromString(m[1])
		if err == nil {
			token := domain.NormalizeSymbol(strings.ToUpper(m[2]))
			if token == "USDC" {
				return Reply{Message: "You already have USDC! Did you mean to buy another token?"}
			}
			return Reply{Intent: &TradeIntent{
				Type:     domain.TradeBuy,
				TokenIn:  "USDC",
				TokenOut: token,
				Amount:   amount,
			}}
		}
	}

	if m := sellPattern.FindStringSubmatch(lower); m != nil {
		amount, err := decimal.NewFromString(m[1])
		if err == nil {
			token := domain.NormalizeSymbol(strings.ToUpper(m[2]))
			return Reply{Intent: &TradeIntent{
				Type:     domain.TradeSell,
				TokenIn:  token,
				TokenOut: "USDC",
				Amount:   amount,
			}}
		}
	}

	if m := swapPattern.FindStringSubmatch(lower); m != nil {
		amount, err := decimal.NewFromString(m[1])
		if err == nil {
			return Reply{Intent: &TradeIntent{
				Type:     domain.TradeBuy,
				TokenIn:  domain.NormalizeSymbol(strings.ToUpper(m[2])),
				TokenOut: domain.NormalizeSymbol(strings.ToUpper(m[3])),
				Amount:   amount,
			}}
		}
	}

	switch {
	case strings.Contains(lower, "portfolio"), strings.Contains(lower, "balance"), strings.Contains(lower, "holdings"):
		return Reply{Message: portfolioSummary(balance, prices)}
	case strings.Contains(lower, "price"), strings.Contains(lower, "how much"):
		return Reply{Message: priceSummary(prices)}
	case strings.Contains(lower, "help"), lower == "hi", lower == "hello":
		return Reply{Message: helpMessage}
	}

	return Reply{Message: "I'm not sure what you mean. Try commands like:\n- \"Buy $50 of ETH\"\n- \"Sell 0.01 ETH\"\n- \"Show my portfolio\"\n- \"Show prices\""}
}

func portfolioSummary(balance domain.Balance, prices domain.PriceData) string {
	assets := make([]string, 0, len(balance))
	for asset, amt := range balance {
		if amt.IsPositive() {
			assets = append(assets, asset)
		}
	}
	if len(assets) == 0 {
		return "Your session has no active holdings. Open a session and deposit funds to start trading."
	}
	sort.Strings(assets)

	var b strings.Builder
	b.WriteString("Your current holdings:\n")
	total := decimal.Zero
	for _, asset := range assets {
		amt := balance[asset]
		def := 0.0
		if asset == domain.AssetUSDC {
			def = 1.0
		}
		value := amt.Mul(decimal.NewFromFloat(prices.USDOrDefault(asset, def)))
		total = total.Add(value)
		fmt.Fprintf(&b, "- %s %s: $%s\n", amt.StringFixed(4), strings.ToUpper(asset), value.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal value: $%s", total.StringFixed(2))
	return b.String()
}

func priceSummary(prices domain.PriceData) string {
	symbols := make([]string, 0, len(prices))
	for symbol := range prices {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var b strings.Builder
	b.WriteString("Current prices:\n")
	for _, symbol := range symbols {
		pt := prices[symbol]
		sign := ""
		if pt.USD24hChange >= 0 {
			sign = "+"
		}
		fmt.Fprintf(&b, "- %s: $%.2f (%s%.2f%%)\n", symbol, pt.USD, sign, pt.USD24hChange)
	}
	return strings.TrimRight(b.String(), "\n")
}

const helpMessage = `Welcome to FlowDesk! Here's what I can do:

- Buy tokens: "Buy $100 of ETH" or "Buy $50 of WBTC"
- Sell tokens: "Sell 0.01 ETH" or "Sell $25 of WBTC"
- Swap tokens: "Swap 100 USDC for ETH"
- Check portfolio: "Show my portfolio" or "What's my balance?"
- Check prices: "Show prices" or "How much is ETH?"

All trades execute instantly over the state channel - zero gas fees!`
