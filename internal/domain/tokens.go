package domain

import "github.com/ethereum/go-ethereum/common"

// Chain describes a supported settlement or source chain.
type Chain struct {
	ID   uint64
	Name string
}

// SupportedChains lists the chains the client can bridge from or settle on.
var SupportedChains = []Chain{
	{ID: 1, Name: "Ethereum"},
	{ID: 42161, Name: "Arbitrum"},
	{ID: 10, Name: "Optimism"},
	{ID: 137, Name: "Polygon"},
	{ID: 8453, Name: "Base"},
}

// Token describes a tradable asset.
type Token struct {
	Symbol      string
	Decimals    int
	CoingeckoID string
}

// Tokens is the registry of assets the client knows how to quote and trade.
var Tokens = map[string]Token{
	"USDC": {Symbol: "USDC", Decimals: 6, CoingeckoID: "usd-coin"},
	"ETH":  {Symbol: "ETH", Decimals: 18, CoingeckoID: "ethereum"},
	"WBTC": {Symbol: "WBTC", Decimals: 8, CoingeckoID: "wrapped-bitcoin"},
	"WETH": {Symbol: "WETH", Decimals: 18, CoingeckoID: "ethereum"},
}

// TokenAddresses maps chain id to the on-chain contract address per symbol.
// Used by the bridging flow; the off-chain trading path never touches these.
var TokenAddresses = map[uint64]map[string]common.Address{
	42161: {
		"USDC": common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"),
		"WETH": common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"),
		"WBTC": common.HexToAddress("0x2f2a2543B76A4166549F7aaB2e75Bef0aefC5B0f"),
	},
	10: {
		"USDC": common.HexToAddress("0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"),
		"WETH": common.HexToAddress("0x4200000000000000000000000000000000000006"),
		"WBTC": common.HexToAddress("0x68f180fcCe6836688e9084f035309E29Bf0A2095"),
	},
	137: {
		"USDC": common.HexToAddress("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"),
		"WETH": common.HexToAddress("0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619"),
		"WBTC": common.HexToAddress("0x1BFD67037B42Cf73acF2047067bd4F2C47D9BfD6"),
	},
	8453: {
		"USDC": common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		"WETH": common.HexToAddress("0x4200000000000000000000000000000000000006"),
	},
}

// NormalizeSymbol maps user-facing aliases onto registry symbols.
func NormalizeSymbol(symbol string) string {
	switch symbol {
	case "BTC", "BITCOIN":
		return "WBTC"
	}
	return symbol
}
