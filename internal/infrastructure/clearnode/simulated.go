package clearnode

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/flowdesk/flowdesk/internal/domain/wire"
)

// SimulatedTransport is an in-process clearnode. It answers the full
// protocol (auth, channel, transfer, keep-alive) with plausible responses
// after a configurable latency, so the lifecycle manager runs unchanged in
// demos and tests.
type SimulatedTransport struct {
	// Latency is the per-exchange response delay.
	Latency time.Duration
	// SettleDelay is added on top of Latency for close_channel, imitating
	// on-chain settlement.
	SettleDelay time.Duration

	mu       sync.Mutex
	handler  MessageHandler
	silent   map[string]bool
	fail     map[string]string
	done     chan struct{}
	doneOnce sync.Once
}

// NewSimulatedTransport creates a simulated clearnode with short delays.
func NewSimulatedTransport() *SimulatedTransport {
	return &SimulatedTransport{
		Latency:     10 * time.Millisecond,
		SettleDelay: 50 * time.Millisecond,
		silent:      make(map[string]bool),
		fail:        make(map[string]string),
		done:        make(chan struct{}),
	}
}

// Silence makes the simulator never answer the given method. Used to test
// request timeouts.
func (t *SimulatedTransport) Silence(method string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.silent[method] = true
}

// FailWith makes the simulator answer the given method with an error
// envelope carrying msg.
func (t *SimulatedTransport) FailWith(method, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fail[method] = msg
}

// Start records the handler; the simulator has no connection to open.
func (t *SimulatedTransport) Start(_ context.Context, handler MessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
	return nil
}

// Send routes a request to the simulated counterparty.
func (t *SimulatedTransport) Send(_ context.Context, env wire.Envelope) error {
	t.mu.Lock()
	if t.silent[env.Method] {
		t.mu.Unlock()
		return nil
	}
	if msg, ok := t.fail[env.Method]; ok {
		t.mu.Unlock()
		t.respond(t.Latency, env.RequestID, wire.MethodError, wire.ErrorResult{Error: msg})
		return nil
	}
	t.mu.Unlock()

	switch env.Method {
	case wire.MethodAuthRequest:
		t.respond(t.Latency, env.RequestID, wire.MethodAuthChallenge, wire.AuthChallengeParams{
			ChallengeMessage: uuid.NewString(),
		})
	case wire.MethodAuthVerify:
		t.respond(t.Latency, env.RequestID, wire.MethodAuthVerify, wire.AuthVerifyResult{
			Success:     true,
			BearerToken: uuid.NewString(),
		})
	case wire.MethodCreateChannel:
		t.respond(t.Latency, env.RequestID, wire.MethodCreateChannel, map[string]interface{}{
			"channel_id": randomChannelID(),
		})
	case wire.MethodTransfer:
		t.respond(t.Latency, env.RequestID, wire.MethodTransfer, map[string]interface{}{
			"success": true,
		})
	case wire.MethodCloseChannel:
		t.respond(t.Latency+t.SettleDelay, env.RequestID, wire.MethodCloseChannel, map[string]interface{}{
			"success": true,
		})
	case wire.MethodPing:
		t.respond(t.Latency, 0, wire.MethodPong, map[string]interface{}{})
	}
	return nil
}

// Done is closed once the simulator is shut down.
func (t *SimulatedTransport) Done() <-chan struct{} {
	return t.done
}

// Close shuts the simulator down; queued responses are discarded.
func (t *SimulatedTransport) Close() error {
	t.doneOnce.Do(func() {
		close(t.done)
	})
	return nil
}

func (t *SimulatedTransport) respond(after time.Duration, id uint64, method string, params interface{}) {
	env, err := wire.NewRequest(id, method, params)
	if err != nil {
		return
	}
	time.AfterFunc(after, func() {
		select {
		case <-t.done:
			return
		default:
		}
		t.mu.Lock()
		handler := t.handler
		t.mu.Unlock()
		if handler != nil {
			handler(env)
		}
	})
}

// randomChannelID fabricates a 32-byte channel identifier.
func randomChannelID() string {
	a, b := uuid.New(), uuid.New()
	return "0x" + common.Bytes2Hex(append(a[:], b[:]...))
}
