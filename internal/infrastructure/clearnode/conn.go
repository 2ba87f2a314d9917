package clearnode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/flowdesk/flowdesk/internal/domain"
	"github.com/flowdesk/flowdesk/internal/domain/wire"
	"github.com/flowdesk/flowdesk/internal/infrastructure/logging"
)

// Reference protocol timings.
const (
	DefaultRequestTimeout    = 15 * time.Second
	DefaultKeepAliveInterval = 30 * time.Second
)

// RequestTimeoutError indicates no response arrived within the bound.
type RequestTimeoutError struct {
	Method  string
	Timeout time.Duration
}

// Error returns the error message.
func (e *RequestTimeoutError) Error() string {
	return fmt.Sprintf("%s request timed out after %s", e.Method, e.Timeout)
}

// ProtocolError is an explicit error envelope from the counterparty.
type ProtocolError struct {
	Method  string
	Message string
}

// Error returns the error message.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("clearnode rejected %s: %s", e.Method, e.Message)
}

type callResult struct {
	env wire.Envelope
	err error
}

// preAuthMethod reports whether a method may be sent before the handshake
// completes. Everything else requires the session key to be delegated first.
func preAuthMethod(method string) bool {
	switch method {
	case wire.MethodAuthRequest, wire.MethodAuthVerify, wire.MethodPing:
		return true
	}
	return false
}

// pendingRequest is one in-flight exchange. Resolution is exactly-once: a
// response arriving after the timeout already fired is dropped, and vice
// versa.
type pendingRequest struct {
	method string
	ch     chan callResult
	timer  *time.Timer
	once   sync.Once
}

func (p *pendingRequest) resolve(r callResult) {
	p.once.Do(func() {
		p.timer.Stop()
		p.ch <- r
	})
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithRequestTimeout overrides the per-request timeout.
func WithRequestTimeout(d time.Duration) ConnOption {
	return func(c *Conn) { c.requestTimeout = d }
}

// WithKeepAliveInterval overrides the keep-alive period.
func WithKeepAliveInterval(d time.Duration) ConnOption {
	return func(c *Conn) { c.keepAliveInterval = d }
}

// Conn multiplexes correlated request/response exchanges and unsolicited
// notifications over one ChannelTransport. It owns the pending-request table
// and the per-connection session key.
type Conn struct {
	transport         ChannelTransport
	logger            *logging.Logger
	requestTimeout    time.Duration
	keepAliveInterval time.Duration

	mu            sync.Mutex
	sessionKey    *SessionKey
	pending       map[uint64]*pendingRequest
	nextID        uint64
	authenticated bool
	bearerToken   string
	keepAliveStop chan struct{}
}

// NewConn wraps a transport. The transport must not have been started.
func NewConn(transport ChannelTransport, logger *logging.Logger, opts ...ConnOption) *Conn {
	c := &Conn{
		transport:         transport,
		logger:            logger,
		requestTimeout:    DefaultRequestTimeout,
		keepAliveInterval: DefaultKeepAliveInterval,
		pending:           make(map[uint64]*pendingRequest),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open generates a fresh session key and starts the transport. The key
// signs every outbound request for this connection's lifetime.
func (c *Conn) Open(ctx context.Context) error {
	key, err := NewSessionKey()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.sessionKey = key
	c.mu.Unlock()

	if err := c.transport.Start(ctx, c.handleMessage); err != nil {
		return err
	}

	go func() {
		<-c.transport.Done()
		c.onTransportClosed()
	}()
	return nil
}

// SessionKey returns the ephemeral key for this connection, nil before Open.
func (c *Conn) SessionKey() *SessionKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionKey
}

// Authenticated reports whether the auth handshake has completed.
func (c *Conn) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// BearerToken returns the token granted at verification, empty before then.
func (c *Conn) BearerToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bearerToken
}

// Call sends a signed request and waits for the correlated response, the
// timeout, or context cancellation, whichever comes first.
func (c *Conn) Call(ctx context.Context, method string, params interface{}) (wire.Envelope, error) {
	c.mu.Lock()
	if c.sessionKey == nil {
		c.mu.Unlock()
		return wire.Envelope{}, errors.New("connection not open")
	}
	if !c.authenticated && !preAuthMethod(method) {
		c.mu.Unlock()
		return wire.Envelope{}, domain.ErrNotAuthenticated
	}
	c.nextID++
	id := c.nextID
	key := c.sessionKey
	c.mu.Unlock()

	env, err := wire.NewRequest(id, method, params)
	if err != nil {
		return wire.Envelope{}, err
	}
	payload, err := env.SigningPayload()
	if err != nil {
		return wire.Envelope{}, err
	}
	sig, err := key.Sign(payload)
	if err != nil {
		return wire.Envelope{}, err
	}
	env.Signatures = []string{sig}

	req := &pendingRequest{
		method: method,
		ch:     make(chan callResult, 1),
	}
	req.timer = time.AfterFunc(c.requestTimeout, func() {
		c.remove(id)
		req.resolve(callResult{err: &RequestTimeoutError{Method: method, Timeout: c.requestTimeout}})
	})

	c.mu.Lock()
	c.pending[id] = req
	c.mu.Unlock()

	if err := c.transport.Send(ctx, env); err != nil {
		c.remove(id)
		req.resolve(callResult{err: errors.Wrapf(err, "sending %s request", method)})
	}

	select {
	case r := <-req.ch:
		return r.env, r.err
	case <-ctx.Done():
		c.remove(id)
		req.resolve(callResult{err: ctx.Err()})
		r := <-req.ch
		return r.env, r.err
	}
}

func (c *Conn) remove(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Conn) take(id uint64) *pendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	return req
}

// handleMessage classifies one inbound envelope: an error for a pending
// request, a correlated response, or an unsolicited notification.
func (c *Conn) handleMessage(env wire.Envelope) {
	if env.Method == wire.MethodError {
		if req := c.take(env.RequestID); req != nil {
			req.resolve(callResult{err: &ProtocolError{Method: req.method, Message: wire.ErrorMessage(env.Params)}})
			return
		}
		c.logger.Warn("clearnode error with no pending request", logging.Fields{
			"request_id": env.RequestID,
			"error":      wire.ErrorMessage(env.Params),
		})
		return
	}

	if req := c.take(env.RequestID); req != nil {
		req.resolve(callResult{env: env})
		return
	}

	c.handleNotification(env)
}

// handleNotification acknowledges unsolicited traffic. Notifications never
// resolve a pending request.
func (c *Conn) handleNotification(env wire.Envelope) {
	switch env.Method {
	case wire.MethodBalanceUpdate:
		c.logger.Debug("balance update from clearnode")
	case wire.MethodChannelUpdate:
		c.logger.Debug("channel update from clearnode")
	case wire.MethodTransferNotice:
		c.logger.Debug("transfer notice from clearnode")
	case wire.MethodPong:
		// Keep-alive echo.
	default:
		c.logger.Debug("unhandled clearnode message", logging.Fields{
			"method":     env.Method,
			"request_id": env.RequestID,
		})
	}
}

// markAuthenticated records the bearer token and starts the keep-alive
// loop. Called by Authenticate on verify success.
func (c *Conn) markAuthenticated(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = true
	c.bearerToken = token
	if c.keepAliveStop == nil {
		c.keepAliveStop = make(chan struct{})
		go c.keepAliveLoop(c.keepAliveStop)
	}
}

// keepAliveLoop pings the counterparty on a fixed interval for the lifetime
// of the authenticated connection. Send failures are swallowed: the
// transport's Done channel is the authority on liveness.
func (c *Conn) keepAliveLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-c.transport.Done():
			return
		case <-ticker.C:
			env, err := wire.NewRequest(0, wire.MethodPing, map[string]interface{}{})
			if err != nil {
				continue
			}
			if err := c.transport.Send(context.Background(), env); err != nil {
				c.logger.Debug("keep-alive send failed", logging.Fields{"error": err.Error()})
			}
		}
	}
}

// onTransportClosed clears authentication state once the connection dies.
// Session state committed before the failure is deliberately left alone.
func (c *Conn) onTransportClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = false
	if c.keepAliveStop != nil {
		close(c.keepAliveStop)
		c.keepAliveStop = nil
	}
}

// Close stops the keep-alive loop and tears the transport down. Pending
// requests are not rejected here; their timeouts fire naturally.
func (c *Conn) Close() error {
	c.onTransportClosed()
	return c.transport.Close()
}
