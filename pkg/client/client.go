// Package client is the public entry point: it wires the transport, the
// session manager, and the price feed into one constructed, owned instance.
// There is deliberately no package-level singleton; callers construct a
// Client and tear it down with Shutdown.
package client

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/flowdesk/flowdesk/internal/domain"
	"github.com/flowdesk/flowdesk/internal/infrastructure/clearnode"
	"github.com/flowdesk/flowdesk/internal/infrastructure/logging"
	"github.com/flowdesk/flowdesk/internal/infrastructure/prices"
	"github.com/flowdesk/flowdesk/internal/usecases"
)

// Option configures a Client.
type Option func(*settings)

type settings struct {
	clearnodeURL string
	simulated    bool
	hermesURL    string
	logger       *logging.Logger
	managerCfg   usecases.ManagerConfig
	factory      clearnode.TransportFactory
}

// WithClearnodeURL targets a live clearnode endpoint.
func WithClearnodeURL(url string) Option {
	return func(s *settings) {
		s.clearnodeURL = url
		s.simulated = false
	}
}

// WithSimulatedTransport runs against the in-process counterparty.
func WithSimulatedTransport() Option {
	return func(s *settings) { s.simulated = true }
}

// WithTransportFactory injects a custom transport, mainly for tests.
func WithTransportFactory(factory clearnode.TransportFactory) Option {
	return func(s *settings) { s.factory = factory }
}

// WithLogger sets the logger for all components.
func WithLogger(logger *logging.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithHermesURL overrides the price feed endpoint.
func WithHermesURL(url string) Option {
	return func(s *settings) { s.hermesURL = url }
}

// WithManagerConfig overrides the session manager configuration.
func WithManagerConfig(cfg usecases.ManagerConfig) Option {
	return func(s *settings) { s.managerCfg = cfg }
}

// Client bundles the session manager and the price feed.
type Client struct {
	manager *usecases.Manager
	prices  *prices.Service
	logger  *logging.Logger
}

// New constructs a client for the given wallet. The default configuration
// uses the simulated counterparty.
func New(wallet clearnode.WalletSigner, opts ...Option) (*Client, error) {
	s := settings{
		simulated:  true,
		managerCfg: usecases.DefaultManagerConfig(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}

	factory := s.factory
	if factory == nil {
		if s.simulated {
			factory = func() clearnode.ChannelTransport {
				return clearnode.NewSimulatedTransport()
			}
		} else {
			url, logger := s.clearnodeURL, s.logger
			factory = func() clearnode.ChannelTransport {
				return clearnode.NewWebSocketTransport(url, logger)
			}
		}
	}

	return &Client{
		manager: usecases.NewManager(factory, wallet, s.managerCfg, s.logger),
		prices:  prices.NewService(s.hermesURL, s.logger),
		logger:  s.logger,
	}, nil
}

// OpenSession opens and funds a new trading session.
func (c *Client) OpenSession(ctx context.Context, deposit decimal.Decimal) error {
	return c.manager.Open(ctx, deposit)
}

// ExecuteTrade swaps within the active session at the given quotes.
func (c *Client) ExecuteTrade(ctx context.Context, tradeType domain.TradeType, tokenIn, tokenOut string, amount decimal.Decimal, quotes domain.PriceData) (domain.Trade, error) {
	return c.manager.ExecuteTrade(ctx, tradeType, tokenIn, tokenOut, amount, quotes)
}

// CloseSession settles and closes the active session.
func (c *Client) CloseSession(ctx context.Context) error {
	return c.manager.Close(ctx)
}

// Disconnect hard-resets the client to idle.
func (c *Client) Disconnect() {
	c.manager.Disconnect()
}

// Subscribe registers a session observer; the returned function
// unsubscribes.
func (c *Client) Subscribe(obs usecases.Observer) func() {
	return c.manager.Subscribe(obs)
}

// Session returns a snapshot of the current session.
func (c *Client) Session() domain.Session {
	return c.manager.Session()
}

// Prices exposes the price feed service.
func (c *Client) Prices() *prices.Service {
	return c.prices
}

// Shutdown disconnects and releases the client.
func (c *Client) Shutdown() {
	c.manager.Shutdown()
}
