// Package usecases contains the application services built on the domain
// and infrastructure layers, chief among them the session lifecycle manager.
package usecases

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/flowdesk/flowdesk/internal/domain"
	"github.com/flowdesk/flowdesk/internal/domain/wire"
	"github.com/flowdesk/flowdesk/internal/infrastructure/clearnode"
	"github.com/flowdesk/flowdesk/internal/infrastructure/logging"
)

// Observer receives session snapshots after every committed state change.
type Observer func(domain.Session)

// ManagerConfig configures a session manager.
type ManagerConfig struct {
	// Application identifies this client during authentication.
	Application string
	// Scope is the delegation scope requested for the session key.
	Scope string
	// ChainID is the settlement chain for created channels.
	ChainID uint64
	// SettlementAsset is the deposit asset, lowercase symbol.
	SettlementAsset string
	// SessionTTL bounds the session key delegation.
	SessionTTL time.Duration
	// RequestTimeout bounds each protocol exchange.
	RequestTimeout time.Duration
	// KeepAliveInterval is the ping period once authenticated.
	KeepAliveInterval time.Duration
}

// DefaultManagerConfig returns the reference configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Application:       "flowdesk",
		Scope:             "app.create app.submit",
		ChainID:           42161,
		SettlementAsset:   domain.AssetUSDC,
		SessionTTL:        time.Hour,
		RequestTimeout:    clearnode.DefaultRequestTimeout,
		KeepAliveInterval: clearnode.DefaultKeepAliveInterval,
	}
}

// Manager owns the Session entity and drives it through
// idle -> connecting -> active -> settling -> closed. All mutation happens
// here; everyone else sees snapshots.
type Manager struct {
	cfg     ManagerConfig
	factory clearnode.TransportFactory
	wallet  clearnode.WalletSigner
	logger  *logging.Logger

	mu             sync.Mutex
	session        domain.Session
	initialDeposit decimal.Decimal
	conn           *clearnode.Conn
	opInFlight     bool

	obsMu     sync.Mutex
	observers map[uint64]Observer
	nextObs   uint64
	notifyCh  chan domain.Session
	stopOnce  sync.Once
}

// NewManager constructs a manager. The factory is invoked once per open to
// produce a fresh transport.
func NewManager(factory clearnode.TransportFactory, wallet clearnode.WalletSigner, cfg ManagerConfig, logger *logging.Logger) *Manager {
	m := &Manager{
		cfg:       cfg,
		factory:   factory,
		wallet:    wallet,
		logger:    logger,
		session:   domain.NewSession(),
		observers: make(map[uint64]Observer),
		notifyCh:  make(chan domain.Session, 128),
	}
	go m.notifyLoop()
	return m
}

// Subscribe registers an observer for future state changes; there is no
// replay of past ones. The returned function unsubscribes.
func (m *Manager) Subscribe(obs Observer) func() {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.nextObs++
	id := m.nextObs
	m.observers[id] = obs
	return func() {
		m.obsMu.Lock()
		defer m.obsMu.Unlock()
		delete(m.observers, id)
	}
}

// Session returns an independent snapshot of the current session.
func (m *Manager) Session() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Snapshot()
}

// notifyLoop fans snapshots out to observers in commit order. A single
// consumer goroutine keeps delivery FIFO per manager.
func (m *Manager) notifyLoop() {
	for snap := range m.notifyCh {
		m.obsMu.Lock()
		observers := make([]Observer, 0, len(m.observers))
		for _, obs := range m.observers {
			observers = append(observers, obs)
		}
		m.obsMu.Unlock()

		for _, obs := range observers {
			obs(snap.Snapshot())
		}
	}
}

// notifyLocked publishes the current session. Callers must hold m.mu.
func (m *Manager) notifyLocked() {
	m.notifyCh <- m.session.Snapshot()
}

// Open starts a new session funded with deposit units of the settlement
// asset: connect, authenticate, create the channel, seed the balance. Any
// failure leaves the session closed and is returned to the caller.
func (m *Manager) Open(ctx context.Context, deposit decimal.Decimal) error {
	m.mu.Lock()
	if m.opInFlight {
		m.mu.Unlock()
		return domain.ErrSessionBusy
	}
	switch m.session.Status {
	case domain.StatusIdle, domain.StatusClosed:
	default:
		m.mu.Unlock()
		return domain.ErrSessionOpen
	}
	if !deposit.IsPositive() {
		m.mu.Unlock()
		return domain.ErrInvalidDeposit
	}

	m.opInFlight = true
	m.session = domain.NewSession()
	m.session.ID = "session-" + uuid.NewString()
	m.session.Status = domain.StatusConnecting
	m.initialDeposit = deposit
	// Observers see "connecting" before any network I/O happens.
	m.notifyLocked()
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.opInFlight = false
		m.mu.Unlock()
	}()

	conn, err := m.connect(ctx, deposit)
	if err != nil {
		m.failOpen(err)
		return err
	}

	resp, err := conn.Call(ctx, wire.MethodCreateChannel, wire.CreateChannelParams{
		ChainID: m.cfg.ChainID,
		Token:   m.cfg.SettlementAsset,
	})
	if err != nil {
		_ = conn.Close()
		m.failOpen(err)
		return errors.Wrap(err, "creating channel")
	}

	channelID := wire.ExtractChannelID(resp.Params)
	if channelID == "" {
		_ = conn.Close()
		err := errors.New("create-channel response carried no channel id")
		m.failOpen(err)
		return err
	}

	now := time.Now()
	m.mu.Lock()
	sessionID := m.session.ID
	if m.conn != nil {
		// A stale connection from an earlier session must not outlive it.
		_ = m.conn.Close()
	}
	m.conn = conn
	m.session.ChannelID = channelID
	m.session.Balance = domain.NewBalance()
	m.session.Balance.Set(m.cfg.SettlementAsset, deposit)
	m.session.Trades = nil
	m.session.PnL = decimal.Zero
	m.session.StartTime = &now
	m.session.Status = domain.StatusActive
	m.notifyLocked()
	m.mu.Unlock()

	m.logger.Info("session active", logging.Fields{
		"session_id": sessionID,
		"channel_id": channelID,
		"deposit":    deposit.String(),
	})
	return nil
}

// connect builds a fresh transport and runs the auth handshake, granting the
// session key an allowance equal to the deposit.
func (m *Manager) connect(ctx context.Context, deposit decimal.Decimal) (*clearnode.Conn, error) {
	conn := clearnode.NewConn(m.factory(), m.logger,
		clearnode.WithRequestTimeout(m.cfg.RequestTimeout),
		clearnode.WithKeepAliveInterval(m.cfg.KeepAliveInterval),
	)
	if err := conn.Open(ctx); err != nil {
		return nil, errors.Wrap(err, "connecting to clearnode")
	}

	_, err := clearnode.Authenticate(ctx, conn, m.wallet, clearnode.AuthConfig{
		Application: m.cfg.Application,
		Scope:       m.cfg.Scope,
		Expiry:      time.Now().Add(m.cfg.SessionTTL),
		Allowances: []wire.Allowance{
			{Asset: m.cfg.SettlementAsset, Amount: deposit.String()},
		},
	})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// failOpen parks the session in a terminal non-active state after a failed
// open. The caller may try again; closed permits a fresh Open.
func (m *Manager) failOpen(cause error) {
	m.logger.Error("session open failed", logging.Fields{"error": cause.Error()})
	m.mu.Lock()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.session.Status = domain.StatusClosed
	m.notifyLocked()
	m.mu.Unlock()
}

// ExecuteTrade swaps amount of tokenIn for tokenOut at the current quotes.
// Only valid while the session is active. The balance check, the channel
// transfer, and the debit/credit commit are serialized under one lock so a
// following trade observes this one's fully applied balances.
func (m *Manager) ExecuteTrade(ctx context.Context, tradeType domain.TradeType, tokenIn, tokenOut string, amount decimal.Decimal, prices domain.PriceData) (domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Status != domain.StatusActive {
		return domain.Trade{}, domain.NewNoActiveSessionError(m.session.Status)
	}
	if !amount.IsPositive() {
		return domain.Trade{}, domain.ErrInvalidAmount
	}

	// Unknown assets default to a price of 1 so unpriced stable-like assets
	// never block a trade.
	priceIn := m.tradePrice(prices, tokenIn)
	priceOut := m.tradePrice(prices, tokenOut)
	amountOut := amount.Mul(decimal.NewFromFloat(priceIn)).Div(decimal.NewFromFloat(priceOut))

	have := m.session.Balance.Get(tokenIn)
	if have.LessThan(amount) {
		return domain.Trade{}, domain.NewInsufficientBalanceError(tokenIn, have, amount)
	}

	trade := domain.Trade{
		ID:        "trade-" + uuid.NewString(),
		Type:      tradeType,
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  amount.String(),
		AmountOut: amountOut.StringFixed(8),
		Price:     priceOut,
		Timestamp: time.Now(),
		Status:    domain.TradePending,
	}

	if m.session.ChannelID != "" {
		if _, err := m.conn.Call(ctx, wire.MethodTransfer, wire.TransferParams{
			Allocations: []wire.Allocation{
				{Asset: domain.CanonicalAsset(tokenIn), Amount: amount.String()},
			},
		}); err != nil {
			trade.Status = domain.TradeFailed
			return trade, errors.Wrap(err, "channel transfer")
		}
	} else {
		// An active session always has a channel; tolerate the gap but flag it.
		m.logger.Warn("active session without channel id, skipping transfer")
	}

	// Debit and credit commit together; observers never see the gap.
	m.session.Balance.Set(tokenIn, have.Sub(amount))
	m.session.Balance.Set(tokenOut, m.session.Balance.Get(tokenOut).Add(amountOut))
	trade.Status = domain.TradeExecuted
	m.session.Trades = append(m.session.Trades, trade)
	m.recomputePnLLocked(prices)
	m.notifyLocked()

	m.logger.Info("trade executed", logging.Fields{
		"trade_id":   trade.ID,
		"token_in":   tokenIn,
		"token_out":  tokenOut,
		"amount_in":  trade.AmountIn,
		"amount_out": trade.AmountOut,
	})
	return trade, nil
}

// tradePrice quotes a token for trade pricing, defaulting to 1 when the
// feed has no usable entry.
func (m *Manager) tradePrice(prices domain.PriceData, token string) float64 {
	usd, ok := prices.USD(token)
	if !ok || usd <= 0 {
		return 1
	}
	return usd
}

// recomputePnLLocked marks the balance to market and subtracts the deposit
// recorded at open time. The settlement asset quotes at 1 and unknown assets
// at 0; a missing price never aborts the computation.
func (m *Manager) recomputePnLLocked(prices domain.PriceData) {
	total := decimal.Zero
	for asset, amt := range m.session.Balance {
		if amt.IsZero() {
			continue
		}
		def := 0.0
		if asset == m.cfg.SettlementAsset {
			def = 1.0
		}
		price := prices.USDOrDefault(strings.ToUpper(asset), def)
		total = total.Add(amt.Mul(decimal.NewFromFloat(price)))
	}
	m.session.PnL = total.Sub(m.initialDeposit)
}

// Close settles and closes the session's channel. Counterparty failures are
// logged but never leave the session stuck in settling: once requested, the
// lifecycle always reaches closed. Calling Close when the session is not
// active is a no-op.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.session.Status != domain.StatusActive {
		m.mu.Unlock()
		return nil
	}
	if m.opInFlight {
		m.mu.Unlock()
		return domain.ErrSessionBusy
	}
	m.opInFlight = true
	m.session.Status = domain.StatusSettling
	channelID := m.session.ChannelID
	conn := m.conn
	m.notifyLocked()
	m.mu.Unlock()

	if conn != nil {
		_, err := conn.Call(ctx, wire.MethodCloseChannel, wire.CloseChannelParams{
			ChannelID:        channelID,
			FundsDestination: m.wallet.Address().Hex(),
		})
		if err != nil {
			var protoErr *clearnode.ProtocolError
			if errors.As(err, &protoErr) && strings.Contains(strings.ToLower(protoErr.Message), "not found") {
				// Already settled or expired on the counterparty side.
				m.logger.Info("channel already settled", logging.Fields{"channel_id": channelID})
			} else {
				m.logger.Warn("close-channel request failed, settling locally", logging.Fields{
					"channel_id": channelID,
					"error":      err.Error(),
				})
			}
		}
	}

	m.mu.Lock()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.session.Status = domain.StatusClosed
	m.opInFlight = false
	m.notifyLocked()
	m.mu.Unlock()

	m.logger.Info("session closed", logging.Fields{"channel_id": channelID})
	return nil
}

// Disconnect is a hard reset from any state: drop the connection, abandon
// in-flight requests to their timeouts, and return to idle.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.session.Status = domain.StatusIdle
	m.notifyLocked()
	m.mu.Unlock()
}

// Shutdown disconnects and stops the notifier. The manager must not be used
// afterwards.
func (m *Manager) Shutdown() {
	m.Disconnect()
	m.stopOnce.Do(func() {
		close(m.notifyCh)
	})
}
