package clearnode

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdesk/flowdesk/internal/domain"
	"github.com/flowdesk/flowdesk/internal/domain/wire"
	"github.com/flowdesk/flowdesk/internal/infrastructure/logging"
)

// scriptedTransport records outbound envelopes and lets a test inject
// inbound ones by hand.
type scriptedTransport struct {
	mu      sync.Mutex
	handler MessageHandler
	sent    []wire.Envelope
	sendErr error
	done    chan struct{}
	once    sync.Once
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{done: make(chan struct{})}
}

func (t *scriptedTransport) Start(_ context.Context, handler MessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
	return nil
}

func (t *scriptedTransport) Send(_ context.Context, env wire.Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sent = append(t.sent, env)
	return nil
}

func (t *scriptedTransport) Done() <-chan struct{} { return t.done }

func (t *scriptedTransport) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}

// deliver injects an inbound envelope as if the counterparty sent it.
func (t *scriptedTransport) deliver(env wire.Envelope) {
	t.mu.Lock()
	handler := t.handler
	t.mu.Unlock()
	handler(env)
}

func (t *scriptedTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func (t *scriptedTransport) lastSent() wire.Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent[len(t.sent)-1]
}

func openTestConn(t *testing.T, transport ChannelTransport, opts ...ConnOption) *Conn {
	t.Helper()
	conn := NewConn(transport, logging.NewNop(), opts...)
	require.NoError(t, conn.Open(context.Background()))
	return conn
}

func TestCallResolvesCorrelatedResponse(t *testing.T) {
	transport := newScriptedTransport()
	conn := openTestConn(t, transport)
	defer conn.Close()
	conn.markAuthenticated("test-token")

	var (
		wg  sync.WaitGroup
		env wire.Envelope
		err error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		env, err = conn.Call(context.Background(), wire.MethodCreateChannel, wire.CreateChannelParams{ChainID: 42161, Token: "usdc"})
	}()

	require.Eventually(t, func() bool { return transport.sentCount() == 1 }, time.Second, time.Millisecond)
	sent := transport.lastSent()
	assert.Equal(t, wire.MethodCreateChannel, sent.Method)
	assert.Len(t, sent.Signatures, 1)

	params, _ := json.Marshal(map[string]string{"channel_id": "0xfeed"})
	transport.deliver(wire.Envelope{RequestID: sent.RequestID, Method: wire.MethodCreateChannel, Params: params})

	wg.Wait()
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", wire.ExtractChannelID(env.Params))
}

func TestCallTimesOut(t *testing.T) {
	transport := newScriptedTransport()
	conn := openTestConn(t, transport, WithRequestTimeout(30*time.Millisecond))
	defer conn.Close()

	start := time.Now()
	_, err := conn.Call(context.Background(), wire.MethodPing, map[string]interface{}{})
	require.Error(t, err)

	var timeoutErr *RequestTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, wire.MethodPing, timeoutErr.Method)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLateResponseAfterTimeoutIsDropped(t *testing.T) {
	transport := newScriptedTransport()
	conn := openTestConn(t, transport, WithRequestTimeout(20*time.Millisecond))
	defer conn.Close()
	conn.markAuthenticated("test-token")

	_, err := conn.Call(context.Background(), wire.MethodTransfer, wire.TransferParams{})
	require.Error(t, err)

	// The response shows up after the timeout already resolved the call.
	// It must be treated as unsolicited, not crash or resolve anything.
	sent := transport.lastSent()
	transport.deliver(wire.Envelope{RequestID: sent.RequestID, Method: wire.MethodTransfer})
	transport.deliver(wire.Envelope{RequestID: sent.RequestID, Method: wire.MethodTransfer})
}

func TestErrorEnvelopeBecomesProtocolError(t *testing.T) {
	transport := newScriptedTransport()
	conn := openTestConn(t, transport)
	defer conn.Close()
	conn.markAuthenticated("test-token")

	var (
		wg  sync.WaitGroup
		err error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err = conn.Call(context.Background(), wire.MethodCloseChannel, wire.CloseChannelParams{ChannelID: "0x1"})
	}()

	require.Eventually(t, func() bool { return transport.sentCount() == 1 }, time.Second, time.Millisecond)
	sent := transport.lastSent()
	params, _ := json.Marshal(wire.ErrorResult{Error: "channel not found"})
	transport.deliver(wire.Envelope{RequestID: sent.RequestID, Method: wire.MethodError, Params: params})

	wg.Wait()
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, wire.MethodCloseChannel, protoErr.Method)
	assert.Contains(t, protoErr.Message, "channel not found")
}

func TestNotificationDoesNotResolvePending(t *testing.T) {
	transport := newScriptedTransport()
	conn := openTestConn(t, transport, WithRequestTimeout(50*time.Millisecond))
	defer conn.Close()
	conn.markAuthenticated("test-token")

	var (
		wg  sync.WaitGroup
		err error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err = conn.Call(context.Background(), wire.MethodTransfer, wire.TransferParams{})
	}()

	require.Eventually(t, func() bool { return transport.sentCount() == 1 }, time.Second, time.Millisecond)

	// Notifications carry id 0; the pending request has id 1 and must be
	// left to time out.
	transport.deliver(wire.Envelope{RequestID: 0, Method: wire.MethodBalanceUpdate})
	transport.deliver(wire.Envelope{RequestID: 0, Method: wire.MethodPong})

	wg.Wait()
	var timeoutErr *RequestTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
}

func TestCallHonorsContextCancellation(t *testing.T) {
	transport := newScriptedTransport()
	conn := openTestConn(t, transport)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := conn.Call(ctx, wire.MethodPing, map[string]interface{}{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCallFailsBeforeOpen(t *testing.T) {
	conn := NewConn(newScriptedTransport(), logging.NewNop())
	_, err := conn.Call(context.Background(), wire.MethodPing, map[string]interface{}{})
	require.Error(t, err)
}

func TestCallRejectsDomainRequestsBeforeAuth(t *testing.T) {
	transport := newScriptedTransport()
	conn := openTestConn(t, transport, WithRequestTimeout(50*time.Millisecond))
	defer conn.Close()

	for _, method := range []string{wire.MethodCreateChannel, wire.MethodTransfer, wire.MethodCloseChannel} {
		_, err := conn.Call(context.Background(), method, map[string]interface{}{})
		require.ErrorIs(t, err, domain.ErrNotAuthenticated, method)
	}
	// Nothing left the client.
	assert.Zero(t, transport.sentCount())

	// The handshake's own methods are exempt; they must reach the wire.
	go func() {
		_, _ = conn.Call(context.Background(), wire.MethodAuthRequest, wire.AuthRequestParams{})
	}()
	require.Eventually(t, func() bool { return transport.sentCount() == 1 }, time.Second, time.Millisecond)

	conn.markAuthenticated("test-token")
	go func() {
		_, _ = conn.Call(context.Background(), wire.MethodTransfer, wire.TransferParams{})
	}()
	require.Eventually(t, func() bool { return transport.sentCount() == 2 }, time.Second, time.Millisecond)
}

func TestSendFailureResolvesImmediately(t *testing.T) {
	transport := newScriptedTransport()
	transport.sendErr = errors.New("connection reset")
	conn := openTestConn(t, transport)
	defer conn.Close()

	start := time.Now()
	_, err := conn.Call(context.Background(), wire.MethodPing, map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Less(t, time.Since(start), DefaultRequestTimeout)
}

func TestRequestIDsAreMonotonic(t *testing.T) {
	transport := newScriptedTransport()
	conn := openTestConn(t, transport, WithRequestTimeout(10*time.Millisecond))
	defer conn.Close()

	for i := 0; i < 3; i++ {
		_, _ = conn.Call(context.Background(), wire.MethodPing, map[string]interface{}{})
	}

	transport.mu.Lock()
	defer transport.mu.Unlock()
	require.Len(t, transport.sent, 3)
	for i, env := range transport.sent {
		assert.Equal(t, uint64(i+1), env.RequestID)
	}
}

func TestKeepAlivePingsAfterAuthentication(t *testing.T) {
	transport := newScriptedTransport()
	conn := openTestConn(t, transport, WithKeepAliveInterval(10*time.Millisecond))
	defer conn.Close()

	assert.False(t, conn.Authenticated())
	conn.markAuthenticated("token-1")
	assert.True(t, conn.Authenticated())
	assert.Equal(t, "token-1", conn.BearerToken())

	require.Eventually(t, func() bool {
		transport.mu.Lock()
		defer transport.mu.Unlock()
		for _, env := range transport.sent {
			if env.Method == wire.MethodPing {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}

func TestKeepAliveSwallowsSendFailures(t *testing.T) {
	transport := newScriptedTransport()
	transport.sendErr = errors.New("broken pipe")
	conn := openTestConn(t, transport, WithKeepAliveInterval(5*time.Millisecond))
	defer conn.Close()

	conn.markAuthenticated("token-2")
	time.Sleep(30 * time.Millisecond)
	assert.True(t, conn.Authenticated())
}

func TestTransportCloseClearsAuthentication(t *testing.T) {
	transport := newScriptedTransport()
	conn := openTestConn(t, transport)

	conn.markAuthenticated("token-3")
	require.NoError(t, transport.Close())

	require.Eventually(t, func() bool { return !conn.Authenticated() }, time.Second, time.Millisecond)
}
