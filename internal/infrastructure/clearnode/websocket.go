package clearnode

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/flowdesk/flowdesk/internal/domain/wire"
	"github.com/flowdesk/flowdesk/internal/infrastructure/logging"
)

// WebSocketTransport connects to a live clearnode over WebSocket.
type WebSocketTransport struct {
	url    string
	logger *logging.Logger

	conn     *websocket.Conn
	writeMu  sync.Mutex
	done     chan struct{}
	doneOnce sync.Once
}

// NewWebSocketTransport creates a transport for the given ws:// or wss://
// endpoint.
func NewWebSocketTransport(url string, logger *logging.Logger) *WebSocketTransport {
	return &WebSocketTransport{
		url:    url,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start dials the endpoint and begins the read pump.
func (t *WebSocketTransport) Start(ctx context.Context, handler MessageHandler) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.markDone()
		return errors.Wrapf(err, "dialing clearnode at %s", t.url)
	}
	t.conn = conn
	t.logger.Info("connected to clearnode", logging.Fields{"url": t.url})

	go t.readPump(handler)
	return nil
}

// Send writes one envelope to the connection.
func (t *WebSocketTransport) Send(_ context.Context, env wire.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshalling envelope")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.conn == nil {
		return errors.New("transport not started")
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "writing to clearnode")
	}
	return nil
}

// Done is closed once the connection has terminated.
func (t *WebSocketTransport) Done() <-chan struct{} {
	return t.done
}

// Close tears the connection down.
func (t *WebSocketTransport) Close() error {
	t.markDone()
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

func (t *WebSocketTransport) markDone() {
	t.doneOnce.Do(func() {
		close(t.done)
	})
}

// readPump delivers inbound envelopes until the connection dies. Payloads
// that match no envelope shape are logged and dropped; they never take the
// connection down.
func (t *WebSocketTransport) readPump(handler MessageHandler) {
	defer t.markDone()

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.logger.Debug("clearnode connection closed", logging.Fields{"error": err.Error()})
			return
		}

		env, err := wire.Decode(data)
		if err != nil {
			t.logger.Warn("dropping unparseable clearnode message", logging.Fields{"error": err.Error()})
			continue
		}
		handler(env)
	}
}
