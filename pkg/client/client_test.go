package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdesk/flowdesk/internal/domain"
	"github.com/flowdesk/flowdesk/internal/infrastructure/clearnode"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	wallet, err := clearnode.NewLocalWallet()
	require.NoError(t, err)

	c, err := New(wallet, WithTransportFactory(func() clearnode.ChannelTransport {
		sim := clearnode.NewSimulatedTransport()
		sim.Latency = time.Millisecond
		sim.SettleDelay = time.Millisecond
		return sim
	}))
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)
	return c
}

func TestClientSessionRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	var (
		mu       sync.Mutex
		statuses []domain.SessionStatus
	)
	unsub := c.Subscribe(func(s domain.Session) {
		mu.Lock()
		statuses = append(statuses, s.Status)
		mu.Unlock()
	})
	defer unsub()

	require.NoError(t, c.OpenSession(ctx, decimal.NewFromInt(500)))
	assert.Equal(t, domain.StatusActive, c.Session().Status)

	quotes := domain.PriceData{"ETH": {USD: 2500}, "USDC": {USD: 1}}
	trade, err := c.ExecuteTrade(ctx, domain.TradeBuy,
		domain.AssetUSDC, domain.AssetETH, decimal.NewFromInt(100), quotes)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeExecuted, trade.Status)

	session := c.Session()
	assert.True(t, session.Balance.Get(domain.AssetUSDC).Equal(decimal.NewFromInt(400)))
	assert.True(t, session.Balance.Get(domain.AssetETH).Equal(decimal.RequireFromString("0.04")))

	require.NoError(t, c.CloseSession(ctx))
	assert.Equal(t, domain.StatusClosed, c.Session().Status)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) >= 5
	}, 2*time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.SessionStatus{
		domain.StatusConnecting,
		domain.StatusActive,
		domain.StatusActive,
		domain.StatusSettling,
		domain.StatusClosed,
	}, statuses)
}

func TestClientDefaultsToSimulatedTransport(t *testing.T) {
	wallet, err := clearnode.NewLocalWallet()
	require.NoError(t, err)

	c, err := New(wallet)
	require.NoError(t, err)
	defer c.Shutdown()

	require.NoError(t, c.OpenSession(context.Background(), decimal.NewFromInt(50)))
	assert.Equal(t, domain.StatusActive, c.Session().Status)
}

func TestClientDisconnectResets(t *testing.T) {
	c := newTestClient(t)

	require.NoError(t, c.OpenSession(context.Background(), decimal.NewFromInt(500)))
	c.Disconnect()
	assert.Equal(t, domain.StatusIdle, c.Session().Status)
}

func TestClientPricesService(t *testing.T) {
	c := newTestClient(t)
	require.NotNil(t, c.Prices())
	assert.NotNil(t, c.Prices().Latest())
}
