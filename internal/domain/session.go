package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SessionStatus represents the lifecycle state of a trading session.
type SessionStatus string

// Session lifecycle states.
const (
	StatusIdle       SessionStatus = "idle"
	StatusConnecting SessionStatus = "connecting"
	StatusActive     SessionStatus = "active"
	StatusSettling   SessionStatus = "settling"
	StatusClosed     SessionStatus = "closed"
)

// Canonical assets every session balance carries, keyed lowercase.
const (
	AssetUSDC = "usdc"
	AssetETH  = "eth"
	AssetWBTC = "wbtc"
)

// Balance maps a lowercase asset symbol to its held quantity. Keys are
// canonicalized via CanonicalAsset; new assets appear as trades introduce
// them.
type Balance map[string]decimal.Decimal

// CanonicalAsset normalizes an asset symbol to its balance key.
func CanonicalAsset(symbol string) string {
	return strings.ToLower(strings.TrimSpace(symbol))
}

// NewBalance returns a balance seeded with the three canonical assets at zero.
func NewBalance() Balance {
	return Balance{
		AssetUSDC: decimal.Zero,
		AssetETH:  decimal.Zero,
		AssetWBTC: decimal.Zero,
	}
}

// Get returns the held quantity for a symbol, zero if the asset is unknown.
func (b Balance) Get(symbol string) decimal.Decimal {
	if v, ok := b[CanonicalAsset(symbol)]; ok {
		return v
	}
	return decimal.Zero
}

// Set records the held quantity for a symbol.
func (b Balance) Set(symbol string, amount decimal.Decimal) {
	b[CanonicalAsset(symbol)] = amount
}

// Clone returns an independent copy of the balance map.
func (b Balance) Clone() Balance {
	out := make(Balance, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Session is the client-local record of a trading engagement. It is owned
// exclusively by the lifecycle manager; observers only ever see snapshots.
type Session struct {
	ID        string
	ChannelID string
	Status    SessionStatus
	Balance   Balance
	Trades    []Trade
	PnL       decimal.Decimal
	StartTime *time.Time
}

// NewSession returns an idle session with an empty canonical balance.
func NewSession() Session {
	return Session{
		Status:  StatusIdle,
		Balance: NewBalance(),
		PnL:     decimal.Zero,
	}
}

// Snapshot returns a deep copy of the session. Mutating the copy never
// affects the manager-owned original.
func (s Session) Snapshot() Session {
	out := s
	out.Balance = s.Balance.Clone()
	out.Trades = make([]Trade, len(s.Trades))
	copy(out.Trades, s.Trades)
	if s.StartTime != nil {
		t := *s.StartTime
		out.StartTime = &t
	}
	return out
}
